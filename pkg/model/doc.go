/*
 * Copyright © 2019 One Concern
 *
 */

// Package model describes the objects persisted by envmon.
//
// An environment directory holds a manifest and an optional lockfile. Managed
// environments additionally carry a pointer to their upstream (env.json) and a
// pin record (env.lock) telling which commit of the generations history the
// working copy is synchronized to.
//
// The generations history of an environment lives on a git branch:
//
//	metadata.json
//	1/env/manifest.toml
//	1/env/manifest.lock
//	2/env/manifest.toml
//	...
package model
