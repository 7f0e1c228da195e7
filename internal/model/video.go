package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/sethvargo/go-retry"
	"google.golang.org/genai"
)

var errOperationPending = errors.New("operation pending")

// Video starts a video job, polls it at the configured interval until it
// completes, and downloads the result. Cancelling ctx stops polling and
// returns the context error.
func (i *Invoker) Video(ctx context.Context, req VideoRequest) (*Media, error) {
	config := &genai.GenerateVideosConfig{NumberOfVideos: 1, AspectRatio: req.AspectRatio}
	if req.DurationSeconds > 0 {
		config.DurationSeconds = genai.Ptr(req.DurationSeconds)
	}

	op, err := i.backend.GenerateVideos(ctx, req.Model, req.Prompt, config)
	if err != nil {
		return nil, fmt.Errorf("failed to start video generation: %w", err)
	}
	if op == nil {
		return nil, ErrNoMedia
	}

	op, cycles, err := i.awaitOperation(ctx, op)
	if err != nil {
		return nil, err
	}
	i.logger.Debug("video operation finished", "operation", op.Name, "cycles", cycles)

	if len(op.Error) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrOperationFailed, op.Error["message"])
	}
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 ||
		op.Response.GeneratedVideos[0] == nil || op.Response.GeneratedVideos[0].Video == nil {
		return nil, ErrNoMedia
	}

	video := op.Response.GeneratedVideos[0].Video
	if len(video.VideoBytes) > 0 {
		return &Media{MIMEType: videoMIME(video.MIMEType), Data: video.VideoBytes}, nil
	}
	if video.URI == "" {
		return nil, ErrNoMedia
	}

	data, contentType, err := i.backend.Download(ctx, video.URI)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrNoMedia
	}
	if video.MIMEType != "" {
		contentType = video.MIMEType
	}
	return &Media{MIMEType: videoMIME(contentType), Data: data}, nil
}

// awaitOperation waits one interval, refreshes op, and repeats until op is
// done. It returns the terminal operation and the number of wait cycles.
func (i *Invoker) awaitOperation(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, int, error) {
	backoff := retry.NewConstant(i.pollInterval)
	if i.maxWait > 0 {
		backoff = retry.WithMaxDuration(i.maxWait, backoff)
	}

	cycles := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if cycles > 0 {
			next, err := i.backend.GetVideosOperation(ctx, op)
			if err != nil {
				return fmt.Errorf("failed to check video operation: %w", err)
			}
			if next == nil {
				return fmt.Errorf("%w: video operation %s disappeared while polling", ErrNoMedia, op.Name)
			}
			op = next
		}
		if op.Done {
			return nil
		}
		cycles++
		return retry.RetryableError(errOperationPending)
	})
	switch {
	case err == nil:
		return op, cycles, nil
	case ctx.Err() != nil:
		i.logger.Warn("abandoning video operation", "operation", op.Name, "cycles", cycles, "error", ctx.Err())
		return nil, cycles, ctx.Err()
	case errors.Is(err, errOperationPending):
		return nil, cycles, fmt.Errorf("%w after %s", ErrPollTimeout, i.maxWait)
	default:
		return nil, cycles, err
	}
}

func videoMIME(mt string) string {
	if mt == "" {
		return "video/mp4"
	}
	return mt
}
