// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package manifest

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch fires fn for every out-of-band reconciliation pass triggered by a
// filesystem change in the root directory itself (its subdirectories are
// not watched), in addition to (never instead
// of) the periodic scan a caller drives separately: a missed or coalesced
// fsnotify event must not be the only thing standing between a manifest
// change and reconciliation. Returns once ctx is cancelled or the watcher
// cannot be established; a failure to watch is logged and is not fatal to
// the caller's periodic scan.
func Watch(ctx context.Context, root string, logger *slog.Logger, fn func()) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("manifest watch disabled: could not create fsnotify watcher", "error", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(root); err != nil {
		logger.Warn("manifest watch disabled: could not watch storage directory", "path", root, "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				fn()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("manifest watch error", "error", err)
		}
	}
}
