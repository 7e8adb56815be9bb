package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"plainapi/internal/code"
	"plainapi/internal/responses"
	"plainapi/internal/sql"
)

// ParserFactory builds a block parser with extra options applied last.
type ParserFactory func(opts ...code.Option) *code.Parser

type ParseHandler struct {
	newParser ParserFactory
	schema    *sql.Schema
}

// NewParseHandler serves the parsers over HTTP. schema is the default used
// when a request carries no DDL of its own; it may be nil.
func NewParseHandler(newParser ParserFactory, schema *sql.Schema) *ParseHandler {
	return &ParseHandler{newParser: newParser, schema: schema}
}

type TokensRequest struct {
	SQL string `json:"sql" binding:"required"`
}

type SchemaRequest struct {
	DDL                string `json:"ddl" binding:"required"`
	IncludeIfNotExists bool   `json:"includeIfNotExists"`
}

type SchemaResponse struct {
	Tables  []sql.Table `json:"tables"`
	Skipped []string    `json:"skipped"`
}

type ShapeRequest struct {
	SQL string `json:"sql" binding:"required"`
	DDL string `json:"ddl"`
}

type BlockRequest struct {
	Code       string          `json:"code" binding:"required"`
	DDL        string          `json:"ddl"`
	Vars       []code.Variable `json:"vars" binding:"dive"`
	LineOffset int             `json:"lineOffset" binding:"gte=0"`
}

type BlockResponse struct {
	Block code.Block   `json:"block"`
	Scope code.Context `json:"scope"`
}

type EndpointRequest struct {
	Text string `json:"text" binding:"required"`
	DDL  string `json:"ddl"`
}

func (h *ParseHandler) Tokens(c *gin.Context) {
	var req TokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body: sql is required")
		return
	}
	tokens, err := sql.TokenizeAll(req.SQL)
	if err != nil {
		parseFailed(c, err)
		return
	}
	responses.Success(c, http.StatusOK, tokens, "Tokenized")
}

func (h *ParseHandler) Schema(c *gin.Context) {
	var req SchemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body: ddl is required")
		return
	}
	s, err := sql.ParseSchemaWithOptions(req.DDL, sql.SchemaOptions{IncludeIfNotExists: req.IncludeIfNotExists})
	if err != nil {
		parseFailed(c, err)
		return
	}
	responses.Success(c, http.StatusOK, SchemaResponse{Tables: s.Tables(), Skipped: s.Skipped()}, "Schema parsed")
}

func (h *ParseHandler) Shape(c *gin.Context) {
	var req ShapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body: sql is required")
		return
	}
	schema, err := h.schemaFor(req.DDL)
	if err != nil {
		parseFailed(c, err)
		return
	}
	shape, err := sql.ParseStatement(req.SQL, schema)
	if err != nil {
		parseFailed(c, err)
		return
	}
	responses.Success(c, http.StatusOK, shape, "Statement parsed")
}

func (h *ParseHandler) Block(c *gin.Context) {
	var req BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body: code is required")
		return
	}
	for i, v := range req.Vars {
		t, err := code.ParseVarType(string(v.Type))
		if err != nil {
			responses.Fail(c, http.StatusBadRequest, err, "Invalid request body: vars["+strconv.Itoa(i)+"].type")
			return
		}
		req.Vars[i].Type = t
	}
	p, err := h.parserFor(req.DDL, code.WithLineOffset(req.LineOffset))
	if err != nil {
		parseFailed(c, err)
		return
	}
	block, scope, err := p.ParseBlock(c.Request.Context(), strings.Split(req.Code, "\n"), code.NewContext(req.Vars...))
	if err != nil {
		parseFailed(c, err)
		return
	}
	responses.Success(c, http.StatusOK, BlockResponse{Block: block, Scope: scope}, "Block parsed")
}

func (h *ParseHandler) Endpoints(c *gin.Context) {
	var req EndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body: text is required")
		return
	}
	p, err := h.parserFor(req.DDL)
	if err != nil {
		parseFailed(c, err)
		return
	}
	eps, err := p.ParseEndpoints(c.Request.Context(), req.Text)
	if err != nil {
		parseFailed(c, err)
		return
	}
	responses.Success(c, http.StatusOK, eps, "Endpoints parsed")
}

func (h *ParseHandler) schemaFor(ddl string) (*sql.Schema, error) {
	if strings.TrimSpace(ddl) == "" {
		return h.schema, nil
	}
	return sql.ParseSchema(ddl)
}

func (h *ParseHandler) parserFor(ddl string, opts ...code.Option) (*code.Parser, error) {
	if strings.TrimSpace(ddl) != "" {
		s, err := sql.ParseSchema(ddl)
		if err != nil {
			return nil, err
		}
		opts = append(opts, code.WithSchema(s, ddl))
	}
	return h.newParser(opts...), nil
}

// parseFailed maps parser errors to 422 and oracle timeouts to 504.
func parseFailed(c *gin.Context, err error) {
	line := code.LineOf(err)
	if errors.Is(err, context.DeadlineExceeded) {
		responses.FailAt(c, http.StatusGatewayTimeout, err, "Oracle timed out", line)
		return
	}
	responses.FailAt(c, http.StatusUnprocessableEntity, err, "Parse failed", line)
}
