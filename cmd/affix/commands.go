package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	photoaffix "github.com/Skryldev/photo-affix"
	"github.com/Skryldev/photo-affix/adapters/mediastore"
	"github.com/Skryldev/photo-affix/config"
	"github.com/Skryldev/photo-affix/core"
	"github.com/Skryldev/photo-affix/utils"
)

// consoleOwner prints engine events instead of showing dialogs.
type consoleOwner struct {
	out  io.Writer
	size core.Size
	uri  string
}

func (o *consoleOwner) ShowImageSizingDialog(w, h int) { o.size = core.Size{Width: w, Height: h} }
func (o *consoleOwner) ShowContentLoading(bool)        {}
func (o *consoleOwner) ShowErrorDialog(err error)      { fmt.Fprintf(o.out, "error: %v\n", err) }
func (o *consoleOwner) ShowMemoryError() {
	fmt.Fprintln(o.out, "error: not enough memory; try a smaller --scale")
}
func (o *consoleOwner) OnDoneProcessing()       {}
func (o *consoleOwner) LaunchViewer(uri string) { o.uri = uri }

// wait blocks until t's job has run.
func wait(ctx context.Context, t photoaffix.Ticket) (photoaffix.JobResult, error) {
	select {
	case res := <-t.Result:
		return res, nil
	case <-ctx.Done():
		return photoaffix.JobResult{}, ctx.Err()
	}
}

// layoutFlags override config.Preferences when set.
type layoutFlags struct {
	horizontal    bool
	scalePriority bool
	spacing       int
	bg            string
}

func (l *layoutFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&l.horizontal, "horizontal", false, "stack side by side instead of top to bottom")
	f.BoolVar(&l.scalePriority, "scale-up", true, "scale photos up to the largest one (false: down to the smallest)")
	f.IntVar(&l.spacing, "spacing", 0, "spacing between photos in dp")
	f.StringVar(&l.bg, "bg", "", "background fill, #RRGGBB or #AARRGGBB")
}

func (l *layoutFlags) apply(cmd *cobra.Command, p *config.Preferences) error {
	f := cmd.Flags()
	if f.Changed("horizontal") {
		p.StackHorizontally = l.horizontal
	}
	if f.Changed("scale-up") {
		p.ScalePriority = l.scalePriority
	}
	if f.Changed("spacing") {
		p.SpacingHorizontal, p.SpacingVertical = l.spacing, l.spacing
	}
	if f.Changed("bg") {
		c, err := config.ParseColor(l.bg)
		if err != nil {
			return err
		}
		p.BgFillColor = c
	}
	return nil
}

// sizePhotos runs a sizing job and returns the computed size.
func (a *app) sizePhotos(ctx context.Context, af *photoaffix.Affixer, photos []core.Photo, owner *consoleOwner) (core.Size, error) {
	t, err := af.Process(ctx, photos, owner)
	if err != nil {
		return core.Size{}, err
	}
	res, err := wait(ctx, t)
	if err != nil {
		return core.Size{}, err
	}
	if res.Err != nil {
		return core.Size{}, res.Err
	}
	if res.Sizing.Size.IsZero() {
		return core.Size{}, errors.New("nothing to stitch")
	}
	return res.Sizing.Size, nil
}

func newSizeCmd(a *app) *cobra.Command {
	var layout layoutFlags
	cmd := &cobra.Command{
		Use:   "size [photos...]",
		Short: "Print the size of the stitched image",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := layout.apply(cmd, &a.cfg.Preferences); err != nil {
				return err
			}
			ctx := cmd.Context()
			photos, err := a.photos(ctx, args)
			if err != nil {
				return err
			}
			af, err := a.affixer()
			if err != nil {
				return err
			}
			defer af.Stop()

			owner := &consoleOwner{out: cmd.ErrOrStderr()}
			size, err := a.sizePhotos(ctx, af, photos, owner)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%dx%d\n", size.Width, size.Height)
			return nil
		},
	}
	layout.register(cmd)
	return cmd
}

func newStitchCmd(a *app) *cobra.Command {
	var (
		layout  layoutFlags
		scale   float64
		format  string
		quality int
	)
	cmd := &cobra.Command{
		Use:   "stitch [photos...]",
		Short: "Stitch photos into one image and print its path",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := layout.apply(cmd, &a.cfg.Preferences); err != nil {
				return err
			}
			if scale <= 0 || scale > 1 {
				return fmt.Errorf("--scale must be in (0, 1], got %v", scale)
			}
			if format == "" {
				format = a.cfg.DefaultFormat
			}
			f := core.ParseFormat(format)
			if f != core.FormatPNG && f != core.FormatJPEG {
				return fmt.Errorf("--format must be png or jpeg, got %q", format)
			}
			if quality == 0 {
				quality = a.cfg.DefaultQuality
			}

			ctx := cmd.Context()
			photos, err := a.photos(ctx, args)
			if err != nil {
				return err
			}
			af, err := a.affixer()
			if err != nil {
				return err
			}
			defer af.Stop()

			owner := &consoleOwner{out: cmd.ErrOrStderr()}
			size, err := a.sizePhotos(ctx, af, photos, owner)
			if err != nil {
				return err
			}

			w := utils.RoundNonZero(float64(size.Width) * scale)
			h := utils.RoundNonZero(float64(size.Height) * scale)
			t, err := af.Confirm(ctx, scale, w, h, f, quality, owner)
			if err != nil {
				return err
			}
			res, err := wait(ctx, t)
			if err != nil {
				return err
			}
			if res.Err != nil {
				return res.Err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Commit.OutputPath)
			a.logger.Info("stitched", "uri", owner.uri, "width", w, "height", h)
			return nil
		},
	}
	layout.register(cmd)
	cmd.Flags().Float64Var(&scale, "scale", 1, "output scale in (0, 1]")
	cmd.Flags().StringVar(&format, "format", "", "output format: png or jpeg (default from config)")
	cmd.Flags().IntVar(&quality, "quality", 0, "JPEG quality 1-100 (default from config)")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit int
		jobs  bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently stitched images",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ix, err := mediastore.Open(a.cfg.MediaIndex)
			if err != nil {
				return err
			}
			defer ix.Close()

			out := cmd.OutOrStdout()
			ctx := cmd.Context()
			if jobs {
				recs, err := ix.RecentJobs(ctx, limit)
				if err != nil {
					return err
				}
				for _, r := range recs {
					fmt.Fprintf(out, "%s\t%s\t%s\t%d\t%s\t%s\n",
						r.CreatedAt.Format(time.RFC3339), r.ID, r.Kind, r.Photos, r.Status, r.OutputPath)
				}
				return nil
			}

			entries, err := ix.Recent(ctx, limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%s\t%s\t%s\t%d\t%s\n",
					e.CreatedAt.Format(time.RFC3339), e.URI, e.MIMEType, e.SizeBytes, e.Path)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of rows")
	cmd.Flags().BoolVar(&jobs, "jobs", false, "list jobs instead of outputs")
	return cmd
}
