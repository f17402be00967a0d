package photoaffix

import (
	"github.com/Skryldev/photo-affix/adapters/mediastore"
	"github.com/Skryldev/photo-affix/adapters/storage"
	"github.com/Skryldev/photo-affix/core"
	"github.com/Skryldev/photo-affix/engine"
)

// Engine exposes the underlying engine for advanced use (e.g. state checks
// in tests).  Do not call Process or Commit on it while the worker runs.
func (a *Affixer) Engine() *engine.AffixEngine { return a.engine }

// Registry returns the codec registry so callers can register custom
// decoders/encoders after construction.
func (a *Affixer) Registry() core.Registry { return a.reg }

// Storage returns the output storage adapter.
func (a *Affixer) Storage() *storage.Local { return a.local }

// MediaIndex returns the media index, or nil when none is configured.
func (a *Affixer) MediaIndex() *mediastore.Index { return a.index }
