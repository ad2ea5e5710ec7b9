//go:build !vips

package main

import (
	"fmt"

	"github.com/openann19/petphotos/adapters/processor"
	"github.com/openann19/petphotos/config"
)

// imageBackend returns nil for the pure-Go backend. libvips support needs
// the vips build tag.
func imageBackend(cfg config.Processing) (processor.Backend, func(), error) {
	if cfg.Backend == "vips" {
		return nil, func() {}, fmt.Errorf("processing.backend %q requires a build with -tags vips", cfg.Backend)
	}
	return nil, func() {}, nil
}
