package handlers

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/imamik/daas/internal/httpserver"
	"github.com/imamik/daas/internal/model"
	"github.com/imamik/daas/internal/orchestrator"
)

const requestTimeout = 30 * time.Second

// Request asks a running operator to perform action on a server.
func Request(ctx context.Context, operatorURL, serverID, action string, out io.Writer) error {
	parsed, err := model.ParseAction(action)
	if err != nil {
		return err
	}

	var accepted orchestrator.ActionResponse
	var apiErr httpserver.ErrorResponse

	resp, err := resty.New().
		SetBaseURL(strings.TrimRight(operatorURL, "/")).
		SetTimeout(requestTimeout).
		R().
		SetContext(ctx).
		SetPathParam("serverID", serverID).
		SetBody(orchestrator.ActionRequest{Action: string(parsed)}).
		SetResult(&accepted).
		SetError(&apiErr).
		Post(orchestrator.ActionsPath)
	if err != nil {
		return fmt.Errorf("failed to reach operator: %w", err)
	}
	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = resp.String()
		}
		return fmt.Errorf("operator rejected %s for %s (%d): %s", parsed, serverID, resp.StatusCode(), msg)
	}

	fmt.Fprintf(out, "%s accepted for server %s\n", accepted.Action, accepted.ServerID)
	return nil
}
