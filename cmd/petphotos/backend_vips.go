//go:build vips

package main

import (
	"github.com/openann19/petphotos/adapters/processor"
	"github.com/openann19/petphotos/adapters/vips"
	"github.com/openann19/petphotos/config"
)

func imageBackend(cfg config.Processing) (processor.Backend, func(), error) {
	if cfg.Backend != "vips" {
		return nil, func() {}, nil
	}
	b := vips.NewBackend(cfg)
	return b, b.Shutdown, nil
}
