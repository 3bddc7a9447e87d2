package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"toastd/internal/render"
	"toastd/internal/render/logsink"
	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Play a short walkthrough on the log renderer",
	Long: `Starts a controller without any config and shows a few toasts, a
stateful deploy workflow and a short release questionnaire. Every change is
printed through the log renderer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		step, _ := cmd.Flags().GetDuration("step")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		return runDemo(ctx, logx.NewConsole("info"), step)
	},
}

func init() {
	demoCmd.Flags().Duration("step", 800*time.Millisecond, "delay between workflow steps")
	demoCmd.Flags().Duration("timeout", 30*time.Second, "give up after this long")
	rootCmd.AddCommand(demoCmd)
}

func runDemo(ctx context.Context, log logx.Logger, step time.Duration) error {
	ctrl := toast.New(toast.WithLogger(log), toast.WithMaxVisible(2))
	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	defer ctrl.Stop(context.Background())

	rctx, stopRender := context.WithCancel(ctx)
	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		_ = render.Run(rctx, ctrl, logsink.New(log), log)
	}()
	defer func() {
		stopRender()
		<-rendered
	}()

	ctrl.ShowToast("demo started", toast.WithCategory(toast.CategorySuccess), toast.WithTimeout(2*step))
	ctrl.ShowToast("this one waits in the queue", toast.WithTimeout(step))

	states := toast.ProgressStates("Deploy", []string{
		"Building image",
		"Pushing to registry",
		"Rolling out",
		"Deployed",
	}, step)
	id, err := ctrl.ShowStatefulToast(states, toast.WithNavigation(true), toast.WithStartImmediately(true))
	if err != nil {
		return err
	}

	if err := clickAt(ctx, ctrl, log, id, len(states)-1, "Done"); err != nil {
		return err
	}

	release := toast.QuestionStates("Release", []string{
		"Ship to production now?",
		"Announce the release?",
		"All set.",
	}, [][]toast.Button{
		{toast.ChoiceButton("Ship", func(string) int { return 1 }), toast.JumpButton("Later", 2)},
		{toast.NextButton("Announce"), toast.JumpButton("Stay quiet", 2)},
		{toast.CloseButton("")},
	})
	rid, err := ctrl.ShowStatefulToast(release)
	if err != nil {
		return err
	}
	for _, click := range []struct {
		state int
		text  string
	}{{0, "Ship"}, {1, "Announce"}, {2, "Close"}} {
		if err := clickAt(ctx, ctrl, log, rid, click.state, click.text); err != nil {
			return err
		}
	}

	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for ctrl.QueueStatus().Total > 0 {
		select {
		case <-ctx.Done():
			return errors.New("demo timed out")
		case <-tick.C:
		}
	}
	log.Info("demo finished")
	return nil
}

// clickAt waits until toast id settles on state and clicks the button
// labelled text.
func clickAt(ctx context.Context, ctrl *toast.Controller, log logx.Logger, id string, state int, text string) error {
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return errors.New("demo timed out")
		case <-tick.C:
		}
		t, ok := ctrl.GetToast(id)
		if !ok || t.CurrentState != state || t.Transitioning || t.Removing {
			continue
		}
		for _, b := range t.Buttons {
			if b.Text == text {
				log.Info("clicking", logx.String("toast", t.Title), logx.String("button", text))
				render.Dispatch(ctrl, id, b.ID, log)
				return nil
			}
		}
	}
}
