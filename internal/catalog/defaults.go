// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package catalog

import "github.com/tomtom215/tarpit/internal/trap"

// DefaultTemplates returns the built-in template set. Every trap class is
// represented, and shapes mimic paths real sites expose to crawlers.
func DefaultTemplates() []trap.Template {
	return []trap.Template{
		{
			ID:          "archive-download",
			PathShape:   "/downloads/{slug}/{token}.zip",
			ContentType: "application/zip",
			Class:       trap.ClassResourceSink,
			Weight:      1,
		},
		{
			ID:          "gallery-original",
			PathShape:   "/assets/gallery/{word}/{token}/original.jpg",
			ContentType: "image/jpeg",
			Class:       trap.ClassResourceSink,
			Weight:      1,
		},
		{
			ID:          "report-api",
			PathShape:   "/api/v2/reports/{token}",
			ParamShape:  "format=json&page={num:2}",
			ContentType: "application/json",
			Class:       trap.ClassComputationChallenge,
			Weight:      1,
		},
		{
			ID:          "search-results",
			PathShape:   "/search/{slug}/{token}",
			ParamShape:  "q={word}&sort=relevance",
			ContentType: "text/html",
			Class:       trap.ClassComputationChallenge,
			Weight:      1,
		},
		{
			ID:          "sitemap-shard",
			PathShape:   "/sitemap/{word}-{num:3}/{token}.xml",
			ContentType: "application/xml",
			Class:       trap.ClassMemoryBloat,
			Weight:      1,
		},
		{
			ID:          "data-export",
			PathShape:   "/data/export/{hex:8}/{token}.json",
			ContentType: "application/json",
			Class:       trap.ClassMemoryBloat,
			Weight:      1,
		},
		{
			ID:          "legacy-cgi",
			PathShape:   "/cgi-bin/{word}.cgi/{token}",
			ParamShape:  "lang=en&v={num:1}",
			ContentType: "text/html",
			Class:       trap.ClassTimeSink,
			Weight:      1,
		},
		{
			ID:          "admin-backup",
			PathShape:   "/admin/backups/{token}/{word}.sql",
			ContentType: "application/sql",
			Class:       trap.ClassTimeSink,
			Weight:      1,
		},
		{
			ID:          "docs-walkthrough",
			PathShape:   "/docs/{slug}/step/{token}",
			ContentType: "text/html",
			Class:       trap.ClassChainStep,
			Weight:      1,
			ChainLength: 4,
		},
		{
			ID:          "account-continue",
			PathShape:   "/account/{word}/continue/{token}",
			ContentType: "text/html",
			Class:       trap.ClassChainStep,
			Weight:      1,
			ChainLength: 3,
		},
	}
}

// FallbackTemplates returns the minimal set used when every weight is zero.
func FallbackTemplates() []trap.Template {
	return []trap.Template{
		{
			ID:          "fallback-static",
			PathShape:   "/static/{hex:6}/{token}",
			ContentType: "application/octet-stream",
			Class:       trap.ClassResourceSink,
			Weight:      1,
		},
		{
			ID:          "fallback-redirect",
			PathShape:   "/r/{token}",
			ContentType: "text/html",
			Class:       trap.ClassTimeSink,
			Weight:      1,
		},
	}
}
