package ui

import (
	"context"
	"io"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/bz888/chatprobe/internal/logger"
)

// Job is the work shown in the view. out and errOut feed the conversation
// and debug panes.
type Job func(ctx context.Context, out, errOut io.Writer)

type View struct {
	app          *tview.Application
	conversation *tview.TextView
	debugConsole *tview.TextView
	status       *tview.TextView
	root         *tview.Flex
	done         chan struct{}
	localLogger  *logger.Logger
}

func New(title string) *View {
	v := &View{
		app:  tview.NewApplication(),
		done: make(chan struct{}),
	}
	v.app.EnablePaste(true)
	v.app.EnableMouse(true)

	v.conversation = v.initChatViewer(title)
	v.debugConsole = v.initDebugConsole()
	v.status = tview.NewTextView().SetText("Running... Esc to abort")

	subFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(v.conversation, 0, 1, false).
		AddItem(v.status, 1, 0, false)
	v.root = tview.NewFlex().
		AddItem(subFlex, 0, 2, true).
		AddItem(v.debugConsole, 0, 1, false)
	return v
}

func (v *View) initChatViewer(title string) *tview.TextView {
	textView := tview.NewTextView().
		SetChangedFunc(func() {
			v.app.Draw()
		}).
		SetDynamicColors(false).
		SetWordWrap(true)

	textView.SetTitle(title).SetBorder(true)
	textView.SetScrollable(true)
	textView.ScrollToEnd()
	return textView
}

func (v *View) initDebugConsole() *tview.TextView {
	console := tview.NewTextView().
		SetChangedFunc(func() {
			v.app.Draw()
		}).
		SetDynamicColors(false).
		SetWordWrap(true)

	console.SetTitle("Debugger").SetBorder(true)
	console.ScrollToEnd()
	return console
}

// Conversation is where streamed replies and banners go.
func (v *View) Conversation() io.Writer {
	return v.conversation
}

// DebugConsole receives errors and, in dev mode, log lines.
func (v *View) DebugConsole() io.Writer {
	return v.debugConsole
}

// Done is closed once the job has returned.
func (v *View) Done() <-chan struct{} {
	return v.done
}

// SetScreen replaces the terminal, used with tcell's simulation screen.
func (v *View) SetScreen(screen tcell.Screen) {
	v.app.SetScreen(screen)
}

// Run shows the view and runs job in the background. Esc or Ctrl-C cancels
// the job and closes the view; once the job is done any of q, Esc or Ctrl-C
// quits.
func (v *View) Run(ctx context.Context, job Job) error {
	v.localLogger = logger.NewLogger("views")
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	v.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyESC, event.Key() == tcell.KeyCtrlC:
			cancel()
			v.app.Stop()
			return nil
		case event.Rune() == 'q' && v.finished():
			v.app.Stop()
			return nil
		}
		return event
	})

	go func() {
		<-ctx.Done()
		if !v.finished() {
			v.localLogger.Warn("run aborted: ", ctx.Err())
		}
	}()

	go func() {
		// wait for the event loop so the screen exists before output arrives
		v.app.QueueUpdate(func() {})
		job(ctx, v.conversation, v.debugConsole)
		close(v.done)
		// blocks forever if the app already stopped, which only happens on exit
		v.app.QueueUpdateDraw(func() {
			v.status.SetText("Finished. Press q or Esc to quit")
		})
	}()

	return v.app.SetRoot(v.root, true).SetFocus(v.conversation).Run()
}

func (v *View) finished() bool {
	select {
	case <-v.done:
		return true
	default:
		return false
	}
}
