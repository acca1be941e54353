package cli

import (
	"github.com/majorcontext/berm/internal/pipeline"
	"github.com/majorcontext/berm/internal/ui"
)

// terminalObserver bridges the engine's observer surface to the ui
// package: status lines on stderr and a self-overwriting progress bar
// during the transfer.
type terminalObserver struct {
	bar *ui.Bar
}

func newTerminalObserver(showProgress bool) *terminalObserver {
	return &terminalObserver{bar: ui.NewBar(showProgress)}
}

func (o *terminalObserver) Info(msg string) {
	o.bar.Finish()
	ui.Info(msg)
}

func (o *terminalObserver) Warn(msg string) {
	o.bar.Finish()
	ui.Warn(msg)
}

func (o *terminalObserver) Error(msg string) {
	o.bar.Finish()
	ui.Error(msg)
}

func (o *terminalObserver) Progress(p pipeline.Progress) {
	o.bar.Update(p.Bytes, p.Total, p.Throughput, p.ETA)
}

// Done ends any in-flight progress line.
func (o *terminalObserver) Done() {
	o.bar.Finish()
}
