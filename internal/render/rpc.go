package render

import (
	"context"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"strings"
	"time"
)

// Wire types for the engine's JSON-RPC scripting service.

type loadProjectRequest struct {
	Name string `json:"name"`
}

type loadProjectResponse struct {
	Loaded bool `json:"loaded"`
}

type importProjectRequest struct {
	Path string `json:"path"`
}

type importProjectResponse struct {
	Imported bool `json:"imported"`
}

type importMediaRequest struct {
	Paths []string `json:"paths"`
}

type importMediaResponse struct {
	ClipIDs []string `json:"clip_ids"`
}

type createTimelineRequest struct {
	Name    string   `json:"name"`
	ClipIDs []string `json:"clip_ids"`
}

type createTimelineResponse struct {
	Created bool `json:"created"`
}

type applySettingsRequest struct {
	Settings map[string]string `json:"settings"`
}

type applySettingsResponse struct {
	Applied bool `json:"applied"`
}

type clearJobsRequest struct{}

type clearJobsResponse struct{}

type submitJobRequest struct{}

type submitJobResponse struct {
	JobID   string `json:"job_id"`
	Started bool   `json:"started"`
}

type jobStateRequest struct {
	JobID string `json:"job_id"`
}

type jobStateResponse struct {
	Rendering bool `json:"rendering"`
	Percent   int  `json:"percent"`
}

type quitRequest struct{}

type quitResponse struct{}

const dialTimeout = 2 * time.Second

// rpcSession talks to the engine scripting service over JSON-RPC.
type rpcSession struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the engine scripting service at the given TCP address.
func Dial(address string) (Session, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("engine address required")
	}
	conn, err := net.DialTimeout("tcp", address, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial engine %s: %w", address, err)
	}
	return &rpcSession{
		conn:   conn,
		client: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn)),
	}, nil
}

func (s *rpcSession) call(ctx context.Context, method string, req, resp any) error {
	call := s.client.Go(method, req, resp, nil)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-call.Done:
		if call.Error != nil {
			return fmt.Errorf("%s: %w", method, call.Error)
		}
		return nil
	}
}

func (s *rpcSession) LoadProject(ctx context.Context, name string) (bool, error) {
	var resp loadProjectResponse
	if err := s.call(ctx, "Engine.LoadProject", loadProjectRequest{Name: name}, &resp); err != nil {
		return false, err
	}
	return resp.Loaded, nil
}

func (s *rpcSession) ImportProject(ctx context.Context, path string) error {
	var resp importProjectResponse
	if err := s.call(ctx, "Engine.ImportProject", importProjectRequest{Path: path}, &resp); err != nil {
		return err
	}
	if !resp.Imported {
		return fmt.Errorf("engine rejected project import of %s", path)
	}
	return nil
}

func (s *rpcSession) ImportMedia(ctx context.Context, paths []string) ([]string, error) {
	var resp importMediaResponse
	if err := s.call(ctx, "Engine.ImportMedia", importMediaRequest{Paths: paths}, &resp); err != nil {
		return nil, err
	}
	return resp.ClipIDs, nil
}

func (s *rpcSession) CreateTimeline(ctx context.Context, name string, clipIDs []string) error {
	var resp createTimelineResponse
	if err := s.call(ctx, "Engine.CreateTimeline", createTimelineRequest{Name: name, ClipIDs: clipIDs}, &resp); err != nil {
		return err
	}
	if !resp.Created {
		return fmt.Errorf("engine failed to create timeline %s", name)
	}
	return nil
}

func (s *rpcSession) ApplySettings(ctx context.Context, bundle SettingsBundle) error {
	var resp applySettingsResponse
	if err := s.call(ctx, "Engine.ApplyRenderSettings", applySettingsRequest{Settings: bundle}, &resp); err != nil {
		return err
	}
	if !resp.Applied {
		return fmt.Errorf("engine rejected render settings")
	}
	return nil
}

func (s *rpcSession) ClearRenderJobs(ctx context.Context) error {
	var resp clearJobsResponse
	return s.call(ctx, "Engine.DeleteAllRenderJobs", clearJobsRequest{}, &resp)
}

func (s *rpcSession) SubmitJob(ctx context.Context) (JobHandle, error) {
	var resp submitJobResponse
	if err := s.call(ctx, "Engine.SubmitRenderJob", submitJobRequest{}, &resp); err != nil {
		return "", err
	}
	if resp.JobID == "" || !resp.Started {
		return "", fmt.Errorf("engine did not start the render job")
	}
	return JobHandle(resp.JobID), nil
}

func (s *rpcSession) JobInProgress(ctx context.Context, handle JobHandle) (bool, error) {
	var resp jobStateResponse
	if err := s.call(ctx, "Engine.RenderJobState", jobStateRequest{JobID: string(handle)}, &resp); err != nil {
		return false, err
	}
	return resp.Rendering, nil
}

func (s *rpcSession) JobProgress(ctx context.Context, handle JobHandle) (int, error) {
	var resp jobStateResponse
	if err := s.call(ctx, "Engine.RenderJobState", jobStateRequest{JobID: string(handle)}, &resp); err != nil {
		return 0, err
	}
	return resp.Percent, nil
}

func (s *rpcSession) Quit(ctx context.Context) error {
	var resp quitResponse
	return s.call(ctx, "Engine.Quit", quitRequest{}, &resp)
}

func (s *rpcSession) Close() error {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
