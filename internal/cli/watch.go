// watch.go implements "sitewright watch" and the live-follow loop shared
// with "sitewright generate".
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sitewright-dev/sitewright/internal/generation"
	"github.com/sitewright-dev/sitewright/internal/tui"
	"github.com/sitewright-dev/sitewright/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch <generation-id>",
	Short: "Follow a running generation live",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	id := args[0]
	status, err := a.client.GetStatus(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("looking up generation: %w", err)
	}

	serverStatus := generation.Status(status.Status)
	if serverStatus.Terminal() {
		fmt.Printf("Generation %s already finished: %s (%d%%)\n", id, status.Status, status.Progress)
		return nil
	}

	a.store.Attach(id, serverStatus, status.Progress, status.CurrentStep)
	return watchSession(a, id)
}

// watchSession opens the stream channel for id and follows it until the
// session reaches a terminal state or the user quits. A failed session is
// reported as a command error so the exit code reflects it.
func watchSession(a *app, id string) error {
	a.channel.Connect(id)
	defer a.channel.Disconnect()

	if stdoutIsTTY() {
		if err := tui.RunWatch(a.store.Snapshot); err != nil {
			return err
		}
	} else {
		followPlain(a)
	}

	snap := a.store.Snapshot()
	sess := snap.Current
	if sess == nil || sess.ID != id {
		return nil
	}
	switch sess.Status {
	case generation.StatusCompleted:
		if stdoutIsTTY() && sess.Result != nil {
			fmt.Printf("Website ready (quality score %.1f). Fetch it with: sitewright result %s\n",
				sess.Result.QualityScore, id)
		}
		return nil
	case generation.StatusFailed:
		if sess.Failure != nil {
			return fmt.Errorf("generation failed [%s]: %s", sess.Failure.Code, sess.Failure.Message)
		}
		return fmt.Errorf("generation failed")
	default:
		// User stopped watching; the generation continues server-side.
		fmt.Printf("Stopped watching. Resume with: sitewright watch %s\n", id)
		return nil
	}
}

// followPlain polls snapshots and prints line-per-transition output for
// pipes and CI.
func followPlain(a *app) {
	display := ui.NewProgressDisplay(os.Stdout)
	for {
		snap := a.store.Snapshot()
		display.Observe(snap)
		if snap.Current == nil || snap.Current.Status.Terminal() {
			display.Finish(snap)
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
}
