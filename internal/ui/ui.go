// Package ui implements a terminal progress view for transfers using [tea].
package ui

import (
	"context"
	"fmt"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertwitch/blockfs/internal/queue"
)

// progressProvider defines the methods needed to poll the progress of work.
type progressProvider interface {
	Progress() queue.Progress
}

// Handler is the principal implementation of a user interface [Handler].
type Handler struct {
	program *tea.Program

	LogWriter *TeaLogWriter

	Ready  atomic.Bool
	Failed atomic.Bool
}

// NewHandler returns a pointer to a new user interface [Handler] showing the
// progress of source under the given title. Pressing ctrl+c calls cancel.
func NewHandler(ctx context.Context, cancel context.CancelFunc, title string, source progressProvider, opts ...tea.ProgramOption) *Handler {
	handler := &Handler{}

	model := NewTeaModel(handler, title, source, cancel)
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)

	handler.program = tea.NewProgram(model, opts...)
	handler.LogWriter = NewTeaLogWriter(handler.program)

	return handler
}

// Launch runs the user interface until it is quit by the user, by
// [Handler.Quit] or by the context.
func (uiHandler *Handler) Launch() error {
	defer uiHandler.LogWriter.Stop()

	if _, err := uiHandler.program.Run(); err != nil {
		uiHandler.Failed.Store(true)

		return fmt.Errorf("(ui) %w", err)
	}

	return nil
}

// Quit renders the final state and stops the user interface.
func (uiHandler *Handler) Quit() {
	uiHandler.program.Send(doneMsg{})
}
