package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// Sidecar Naming Rule
// =============================================================================

// suffixReplacer strips the characters the exporter drops from a
// disambiguation suffix such as " (1)" before it is embedded in a sidecar name.
var suffixReplacer = strings.NewReplacer("(", "", ")", "", ",", "")

// MetadataName derives the sidecar file name the exporter writes for a
// media file.
//
// The exporter truncates names to a fixed number of characters (width) and
// appends ext. rel may be a bare name or a directory-relative path starting
// with a separator; in the latter case one extra character is kept so the
// separator does not eat into the name. When rel contains both "(" and ")",
// the segment from the first "(" to the first ")" is appended after the
// truncated prefix with parentheses and commas removed:
//
//	IMG_0001.jpg      -> IMG_0001.jpg.json
//	/IMG_0001.jpg     -> /IMG_0001.jpg.json
//	photo(1,2).jpg    -> photo(1,2).jpg12.json
//
// Widths count characters, not bytes.
func MetadataName(rel string, width int, ext string) string {
	n := width
	if strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, string(filepath.Separator)) {
		n++
	}

	name := rel
	if runes := []rune(rel); len(runes) > n {
		name = string(runes[:n])
	}

	if open := strings.Index(rel, "("); open >= 0 {
		if closing := strings.Index(rel, ")"); closing >= 0 && closing >= open {
			name += suffixReplacer.Replace(rel[open : closing+1])
		}
	}
	return name + ext
}

// nameKey normalizes a file name for comparison so that NFD names (as
// written on some macOS volumes) match their NFC counterparts.
func nameKey(name string) string {
	return norm.NFC.String(name)
}

// =============================================================================
// Pairing Engine
// =============================================================================

// Pair associates one media file with its sidecar.
type Pair struct {
	File     string
	Metadata string
}

// PairingResult is the outcome of both pairing phases.
type PairingResult struct {
	Pairs     []Pair
	Unmatched []string

	// LocalPairs counts how many of Pairs came from the local phase.
	LocalPairs int
}

// Inventory is a listing of the scratch tree.
type Inventory struct {
	Dirs     []string // every directory, including the scratch root
	Files    []string // every regular file
	Metadata []string // the subset of Files carrying the metadata extension
}

// scanScratch lists the scratch tree.
func scanScratch(cfg *Config) (Inventory, error) {
	var inv Inventory
	err := filepath.WalkDir(cfg.Paths.ScratchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			inv.Dirs = append(inv.Dirs, path)
		case d.Type().IsRegular():
			inv.Files = append(inv.Files, path)
			if strings.HasSuffix(d.Name(), cfg.Pairing.MetadataExt) {
				inv.Metadata = append(inv.Metadata, path)
			}
		}
		return nil
	})
	if err != nil {
		return Inventory{}, fmt.Errorf("scan scratch tree: %w", err)
	}
	return inv, nil
}

// PairLocal pairs files with sidecars that sit in the same directory.
//
// Within each directory, files ending in the metadata extension are
// sidecars and everything else is a candidate. A candidate pairs with the
// sidecar named by MetadataName applied to its directory-relative path.
// Each sidecar is claimed at most once; candidates that find no unclaimed
// sidecar are returned as deferred for the global phase. claimed records
// every sidecar used.
func PairLocal(ctx context.Context, cfg *Config, dirs []string, claimed map[string]bool, bar *Bar) (pairs []Pair, deferred []string, err error) {
	ext := cfg.Pairing.MetadataExt
	sep := string(filepath.Separator)

	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		bar.Step()

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", dir, err)
		}

		sidecars := make(map[string]string)
		var candidates []string
		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}
			if strings.HasSuffix(entry.Name(), ext) {
				sidecars[nameKey(sep+entry.Name())] = entry.Name()
			} else {
				candidates = append(candidates, entry.Name())
			}
		}

		for _, name := range candidates {
			file := filepath.Join(dir, name)
			sidecar, ok := sidecars[nameKey(MetadataName(sep+name, cfg.Pairing.NameWidth, ext))]
			if !ok {
				deferred = append(deferred, file)
				continue
			}
			meta := filepath.Join(dir, sidecar)
			if claimed[meta] {
				deferred = append(deferred, file)
				continue
			}
			claimed[meta] = true
			pairs = append(pairs, Pair{File: file, Metadata: meta})
		}
	}
	bar.Finish()
	return pairs, deferred, nil
}

// PairGlobal pairs deferred files against the archive-wide sidecar list,
// comparing bare names only. A match is accepted only when exactly one
// unclaimed sidecar anywhere in the tree carries the derived name; an
// ambiguous or missing match leaves the file unmatched.
func PairGlobal(cfg *Config, deferred, metadata []string, claimed map[string]bool) (pairs []Pair, unmatched []string) {
	byName := make(map[string][]string)
	for _, meta := range metadata {
		if claimed[meta] {
			continue
		}
		key := nameKey(filepath.Base(meta))
		byName[key] = append(byName[key], meta)
	}

	for _, file := range deferred {
		key := nameKey(MetadataName(filepath.Base(file), cfg.Pairing.NameWidth, cfg.Pairing.MetadataExt))
		matches := byName[key]
		if len(matches) != 1 || claimed[matches[0]] {
			unmatched = append(unmatched, file)
			continue
		}
		claimed[matches[0]] = true
		pairs = append(pairs, Pair{File: file, Metadata: matches[0]})
	}
	return pairs, unmatched
}

// PairFiles runs the local phase over every scratch directory and then the
// global phase over whatever the local phase could not place.
func PairFiles(ctx context.Context, cfg *Config, inv Inventory, bar *Bar) (PairingResult, error) {
	claimed := make(map[string]bool)

	local, deferred, err := PairLocal(ctx, cfg, inv.Dirs, claimed, bar)
	if err != nil {
		return PairingResult{}, err
	}
	global, unmatched := PairGlobal(cfg, deferred, inv.Metadata, claimed)

	return PairingResult{
		Pairs:      append(local, global...),
		Unmatched:  unmatched,
		LocalPairs: len(local),
	}, nil
}
