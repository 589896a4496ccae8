package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/affiliate/internal/app"
	"github.com/fatflowers/affiliate/internal/app/service/reporter"
	"github.com/fatflowers/affiliate/internal/app/service/verifier"
)

// One-shot job runner, triggered by an external scheduler:
//
//	jobs report   submit NotReported subscriptions to CJ
//	jobs verify   reconcile Reported subscriptions against CJ records
//
// A run completes or is abandoned by the caller; committed row updates
// stand either way.
func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: jobs <report|verify>")
		os.Exit(2)
	}
	job := os.Args[1]

	exitCode := 0
	defer func() { os.Exit(exitCode) }()

	a := fx.New(
		app.JobsModule,
		fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner, log *zap.SugaredLogger, rep *reporter.Service, ver *verifier.Service) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						ctx := context.Background()
						var err error
						switch job {
						case "report":
							err = rep.Run(ctx)
						case "verify":
							err = ver.Run(ctx)
						default:
							err = fmt.Errorf("unknown job %q", job)
						}
						code := 0
						if err != nil {
							log.Errorw("job run failed", "job", job, "err", err)
							code = 1
						}
						_ = sd.Shutdown(fx.ExitCode(code))
					}()
					return nil
				},
			})
		}),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		zap.NewExample().Sugar().Errorf("failed to start jobs app: %v", err)
		exitCode = 1
		return
	}

	sig := <-a.Wait()
	exitCode = sig.ExitCode

	stopCtx, cancel2 := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
	defer cancel2()
	if err := a.Stop(stopCtx); err != nil {
		zap.NewExample().Sugar().Errorf("failed to stop jobs app: %v", err)
		exitCode = 1
	}
}
