// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-josekit.
//
// go-josekit is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

//go:build !unix

package memory

// allocPages falls back to a heap allocation. The Go collector does not move
// heap objects, so the address stays fixed for the lifetime of the page.
func allocPages(size int, _ bool) (*page, error) {
	return &page{data: make([]byte, size)}, nil
}

func freePages(pg *page) {
	pg.data = nil
}
