package main

import (
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/openann19/petphotos"
	"github.com/openann19/petphotos/adapters/picker"
	apperrors "github.com/openann19/petphotos/errors"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var (
		concurrency     int
		primary         int
		releasePreviews bool
	)

	cmd := &cobra.Command{
		Use:   "add <file>...",
		Short: "Add photos to the profile and upload them",
		Long: "Add each file as a photo slot, upload it through the configured transport\n" +
			"and print the resulting slots. Files beyond the photo limit are rejected.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger(cmd.ErrOrStderr())

			backend, shutdown, err := imageBackend(cfg.Processing)
			if err != nil {
				return err
			}
			defer shutdown()

			opts := []petphotos.Option{petphotos.WithLogger(logger)}
			if backend != nil {
				opts = append(opts, petphotos.WithBackend(backend))
			}
			session, err := petphotos.NewSession(cmd.Context(), cfg, picker.NewFilePicker(args...), opts...)
			if err != nil {
				return err
			}
			defer session.Close()

			start := time.Now()
			var (
				mu       sync.Mutex
				refusals []string
			)
			var g errgroup.Group
			if concurrency > 0 {
				g.SetLimit(concurrency)
			}
			for range args {
				g.Go(func() error {
					if _, err := session.AddPhoto(cmd.Context()); err != nil {
						mu.Lock()
						refusals = append(refusals, apperrors.UserMessage(err))
						mu.Unlock()
					}
					return nil
				})
			}
			_ = g.Wait()
			session.Wait()

			if primary > 0 {
				photos := session.Photos()
				if primary > len(photos) {
					return fmt.Errorf("--primary %d: only %d photos added", primary, len(photos))
				}
				if err := session.SetPrimaryPhoto(photos[primary-1].ID); err != nil {
					return err
				}
			}
			released := 0
			if releasePreviews {
				released = session.HandleMemoryWarning()
			}

			out := cmd.OutOrStdout()
			printSlots(out, session)
			for _, r := range refusals {
				fmt.Fprintf(out, "not added: %s\n", r)
			}
			if releasePreviews {
				fmt.Fprintf(out, "released %d previews\n", released)
			}

			m := session.Metrics()
			fmt.Fprintf(out, "%s · %s upload attempts (%s failed) · %s processed · %s\n",
				session.AccessibilityLabels().PhotoCount,
				humanize.Comma(m.UploadAttempts),
				humanize.Comma(m.FailedAttempts),
				humanize.Bytes(uint64(m.TotalThroughputB)),
				time.Since(start).Round(time.Millisecond),
			)
			return nil
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 3, "Maximum photos added at once (0 = unlimited)")
	cmd.Flags().IntVar(&primary, "primary", 0, "Make the Nth slot (1-based) primary after uploading")
	cmd.Flags().BoolVar(&releasePreviews, "release-previews", false, "Simulate a memory warning after uploading")

	return cmd
}

func printSlots(w io.Writer, session *petphotos.Session) {
	labels := session.AccessibilityLabels()
	photos := session.Photos()

	rows := make([][]string, 0, len(photos))
	for i, p := range photos {
		preview := "-"
		if p.Preview != nil {
			preview = humanize.Bytes(uint64(len(p.Preview)))
		}
		detail := p.UploadID
		switch {
		case p.DuplicateOfID != "":
			detail = fmt.Sprintf("of %s (%.0f%%)", p.DuplicateOfID, p.DuplicateConfidence*100)
		case p.ErrorMessage != "":
			detail = p.ErrorMessage
		}
		label := ""
		if i < len(labels.Slots) {
			label = labels.Slots[i].Label
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			label,
			string(p.Status),
			strconv.Itoa(p.Progress) + "%",
			strconv.Itoa(p.RetryCount),
			fmt.Sprintf("%dx%d", p.Width, p.Height),
			preview,
			detail,
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"#", "Slot", "Status", "Progress", "Retries", "Size", "Preview", "Detail"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))
}
