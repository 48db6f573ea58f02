package mcp

import (
	"context"

	mcplib "github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/stepwise/pkg/domain/tasks"
)

const schemaURI = "stepwise://schema"

func (s *Server) registerSchemaResource() {
	s.mcpServer.Resource(schemaURI).
		Name(schemaURI).
		Description("JSON schema every generated task list must satisfy").
		MimeType("application/schema+json").
		Handler(func(_ context.Context, _ string, _ map[string]string) (*mcplib.ResourceContent, error) {
			return &mcplib.ResourceContent{
				URI:      schemaURI,
				MimeType: "application/schema+json",
				Text:     string(tasks.Schema()),
			}, nil
		})
}
