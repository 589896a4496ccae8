package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/affiliate/internal/app/api/server"
	"github.com/fatflowers/affiliate/internal/app/service/reporter"
	"github.com/fatflowers/affiliate/internal/app/service/subscription"
	"github.com/fatflowers/affiliate/internal/app/service/verifier"
	"github.com/fatflowers/affiliate/internal/clock"
	"github.com/fatflowers/affiliate/internal/platform/cj"
	"github.com/fatflowers/affiliate/internal/platform/db"
	"github.com/fatflowers/affiliate/pkg/config"
	"github.com/fatflowers/affiliate/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

// Module is the long-running HTTP service.
var Module = fx.Options(
	logger.Module,
	config.Module,
	clock.Module,
	db.Module,
	server.Module,
	subscription.Module,
)

// JobsModule is the dependency set for the one-shot job runner; no HTTP
// server, but everything the reporting and verification jobs need.
var JobsModule = fx.Options(
	logger.Module,
	config.Module,
	clock.Module,
	db.Module,
	cj.Module,
	subscription.Module,
	reporter.Module,
	verifier.Module,
)
