package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/desertthunder/hlsx/internal/models"
	"github.com/fatih/color"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
	dimColor  = color.New(color.Faint)
)

// Notifier prints download completions and failures. Removals are not reported.
type Notifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewNotifier creates a [Notifier] writing to w.
func NewNotifier(w io.Writer) *Notifier {
	return &Notifier{w: w}
}

func (n *Notifier) OnTaskStateChanged(ts models.TaskState) {
	if ts.Action.IsRemove() {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	switch ts.State {
	case models.StateCompleted:
		fmt.Fprintf(n.w, "%s %s\n", okColor.Sprint("✓ Downloaded"), ts.Action.Name())
	case models.StateFailed:
		fmt.Fprintf(n.w, "%s %s: %v\n", failColor.Sprint("✗ Download failed"), ts.Action.Name(), ts.Err)
	}
}
