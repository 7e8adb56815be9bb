package code

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Endpoint is one parsed endpoint description:
//
//	GET /users/{id}
//	requires id (integer)
//	user <- sql get the user with id {id}
//	return user
type Endpoint struct {
	Method       string `json:"method"`
	URL          string `json:"url"`
	Requirements string     `json:"requirements"`
	Inputs       []Variable `json:"inputs"`
	Body         Block      `json:"body"`
	// Scope is the inputs followed by every variable bound by the body.
	Scope Context `json:"scope"`
}

var errShortEndpoint = errors.New("endpoint needs a header, a requirements line and at least one statement")

var methods = map[string]bool{"GET": true, "POST": true, "PATCH": true, "DELETE": true}

// ParseEndpoint parses a single endpoint description. Line numbers in errors
// count from the first line of text.
func (p *Parser) ParseEndpoint(ctx context.Context, text string) (*Endpoint, error) {
	return p.parseEndpoint(ctx, strings.Split(text, "\n"), p.lineOffset)
}

// ParseEndpoints parses endpoint descriptions separated by blank lines.
func (p *Parser) ParseEndpoints(ctx context.Context, text string) ([]*Endpoint, error) {
	lines := strings.Split(text, "\n")
	var out []*Endpoint
	start := -1
	flush := func(end int) error {
		if start < 0 {
			return nil
		}
		ep, err := p.parseEndpoint(ctx, lines[start:end], p.lineOffset+start)
		if err != nil {
			return err
		}
		out = append(out, ep)
		start = -1
		return nil
	}
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			if err := flush(i); err != nil {
				return nil, err
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if err := flush(len(lines)); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Parser) parseEndpoint(ctx context.Context, lines []string, offset int) (*Endpoint, error) {
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) < 3 {
		return nil, &LineError{Line: offset + 1, Err: errShortEndpoint}
	}

	method, url, err := parseHeader(lines[0])
	if err != nil {
		return nil, &LineError{Line: offset + 1, Err: err}
	}

	inputs, err := ParseRequirements(lines[1])
	if err != nil {
		return nil, &LineError{Line: offset + 2, Err: err}
	}

	body, scope, err := p.parseLines(ctx, lines[2:], offset+2, NewContext(inputs...))
	if err != nil {
		return nil, err
	}
	return &Endpoint{
		Method:       method,
		URL:          url,
		Requirements: strings.TrimSpace(lines[1]),
		Inputs:       inputs,
		Body:         body,
		Scope:        scope,
	}, nil
}

// parseHeader accepts "GET /path" as well as looser phrasing such as
// "get at url /path": the first HTTP method word and the first word starting
// with '/' are used.
func parseHeader(line string) (string, string, error) {
	var method, url string
	for _, f := range strings.Fields(line) {
		up := strings.ToUpper(f)
		if method == "" && methods[up] {
			method = up
			continue
		}
		if url == "" && strings.HasPrefix(f, "/") {
			url = f
		}
	}
	if method == "" {
		return "", "", fmt.Errorf("header %q: expected one of GET, POST, PATCH, DELETE", strings.TrimSpace(line))
	}
	if url == "" {
		return "", "", fmt.Errorf("header %q: expected a url starting with '/'", strings.TrimSpace(line))
	}
	return method, url, nil
}
