// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianScreenplay/pkg/telemetry"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/pipeline"
)

// Stream event types sent over /v1/analyze/ws.
const (
	EventStarted          = "analysis:started"
	EventProgress         = "analysis:progress"
	EventStationCompleted = "analysis:station_completed"
	EventCompleted        = "analysis:completed"
	EventFailed           = "analysis:failed"
)

const streamWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// StreamEvent is one message sent to a streaming client.
type StreamEvent struct {
	Type      string                  `json:"type"`
	Timestamp time.Time               `json:"timestamp"`
	Title     string                  `json:"title,omitempty"`
	Progress  *pipeline.StageProgress `json:"progress,omitempty"`

	// Completed counts stations finished so far, out of Total selected.
	Completed int `json:"completed,omitempty"`
	Total     int `json:"total,omitempty"`

	Result *pipeline.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// streamConn writes events to a websocket connection. gorilla allows one
// concurrent writer, so send is only called from the handler goroutine.
type streamConn struct {
	ws     *websocket.Conn
	logger *slog.Logger
	failed bool
}

func (sc *streamConn) send(ev StreamEvent) {
	if sc.failed {
		return
	}
	ev.Timestamp = time.Now()
	_ = sc.ws.SetWriteDeadline(ev.Timestamp.Add(streamWriteTimeout))
	if err := sc.ws.WriteJSON(ev); err != nil {
		sc.logger.Warn("failed to write stream event", slog.String("type", ev.Type), slog.String("error", err.Error()))
		sc.failed = true
	}
}

// handleAnalyzeStream runs one analysis per connection and streams its
// progress.
//
// Description:
//
//	The client sends a single AnalyzeRequest as JSON. The server answers
//	with analysis:started, then analysis:progress for every station
//	status change (plus analysis:station_completed when a station
//	finishes), and ends with analysis:completed or analysis:failed
//	carrying the full Result. A rejected request gets analysis:failed
//	with an error and no Result. Closing the connection cancels the run.
func (s *Server) handleAnalyzeStream(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("failed to upgrade the websocket", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()
	ws.SetReadLimit(s.Config().Server.MaxBodyBytes)

	sc := &streamConn{ws: ws, logger: s.logger}

	var req AnalyzeRequest
	if err := ws.ReadJSON(&req); err != nil {
		sc.send(StreamEvent{Type: EventFailed, Error: "invalid request: " + err.Error()})
		return
	}
	if err := binding.Validator.ValidateStruct(&req); err != nil {
		sc.send(StreamEvent{Type: EventFailed, Error: "invalid request: " + err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	ctx, span := telemetry.StartSpan(ctx, "screenplay.server", "server.analyze_stream")
	defer span.End()
	logger := telemetry.LoggerWithTrace(ctx, s.logger)

	run, _, err := s.prepareRun(req, logger)
	if err != nil {
		telemetry.RecordError(span, err)
		sc.send(StreamEvent{Type: EventFailed, Error: err.Error()})
		return
	}

	// The reader only watches for the client going away.
	go func() {
		for {
			if _, _, err := ws.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	total := selectedCount(run.sched.Stages(), run.opts)
	completed := 0
	sc.send(StreamEvent{Type: EventStarted, Title: req.Title, Total: total})

	res := run.execute(ctx, req, func(p pipeline.StageProgress) {
		sc.send(StreamEvent{Type: EventProgress, Progress: &p, Completed: completed, Total: total})
		if p.Status == pipeline.StatusCompleted {
			completed++
			sc.send(StreamEvent{Type: EventStationCompleted, Progress: &p, Completed: completed, Total: total})
		}
	})

	final := StreamEvent{Type: EventCompleted, Result: res, Completed: res.CompletedCount, Total: total}
	if !res.Success {
		final.Type = EventFailed
	} else {
		telemetry.SetSpanOK(span)
	}
	sc.send(final)
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

// selectedCount reports how many of stages the options run.
func selectedCount(stages []int, opts pipeline.RunOptions) int {
	if len(stages) == 0 {
		return 0
	}
	first, last := stages[0], stages[len(stages)-1]
	if opts.StartFromStage != 0 {
		first = opts.StartFromStage
	}
	if opts.EndAtStage != 0 {
		last = opts.EndAtStage
	}
	n := 0
	for _, st := range stages {
		if st < first || st > last {
			continue
		}
		if !slices.Contains(opts.SkipStages, st) {
			n++
		}
	}
	return n
}
