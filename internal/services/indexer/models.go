// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/autobrr/liberry/internal/models"
)

// Backend selects the indexer aggregator implementation.
type Backend string

const (
	BackendProwlarr Backend = "prowlarr"
	BackendJackett  Backend = "jackett"
)

// Mode selects how a ranked release is turned into a download.
type Mode string

const (
	// ModeFetch downloads the release link (or passes a magnet) and adds it to qBittorrent.
	ModeFetch Mode = "fetch"
	// ModeGrab asks Prowlarr to push the release to its own download client.
	ModeGrab Mode = "grab"
)

// ParseBackend normalizes a configured backend name, defaulting to Prowlarr.
func ParseBackend(s string) Backend {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case BackendJackett:
		return BackendJackett
	default:
		return BackendProwlarr
	}
}

// ParseMode normalizes a configured acquisition mode, defaulting to fetch.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeGrab:
		return ModeGrab
	default:
		return ModeFetch
	}
}

// Torznab book categories
const (
	CategoryBooks      = 7000
	CategoryBooksEbook = 7020
)

// prowlarrSearchResult is one entry of GET /api/v1/search.
type prowlarrSearchResult struct {
	GUID        string `json:"guid"`
	IndexerID   int    `json:"indexerId"`
	Indexer     string `json:"indexer"`
	Title       string `json:"title"`
	Size        int64  `json:"size"`
	Seeders     *int   `json:"seeders"`
	DownloadURL string `json:"downloadUrl"`
	MagnetURL   string `json:"magnetUrl"`
	InfoURL     string `json:"infoUrl"`
	Protocol    string `json:"protocol"`
}

func (r prowlarrSearchResult) toRaw() models.RawRelease {
	indexerID := ""
	if r.IndexerID != 0 {
		indexerID = strconv.Itoa(r.IndexerID)
	}
	return models.RawRelease{
		Title:       r.Title,
		GUID:        r.GUID,
		Indexer:     r.Indexer,
		IndexerID:   indexerID,
		Size:        r.Size,
		Seeders:     r.Seeders,
		DownloadURL: r.DownloadURL,
		MagnetURL:   r.MagnetURL,
		InfoURL:     r.InfoURL,
	}
}

// prowlarrGrabRequest is the body of POST /api/v1/search.
type prowlarrGrabRequest struct {
	GUID      string `json:"guid"`
	IndexerID int    `json:"indexerId"`
}

// torznabFeed is the subset of a Torznab RSS response liberry reads.
type torznabFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []torznabItem `xml:"item"`
	} `xml:"channel"`
}

type torznabItem struct {
	Title     string `xml:"title"`
	GUID      string `xml:"guid"`
	Link      string `xml:"link"`
	Comments  string `xml:"comments"`
	Size      int64  `xml:"size"`
	Enclosure struct {
		URL    string `xml:"url,attr"`
		Length int64  `xml:"length,attr"`
	} `xml:"enclosure"`
	JackettIndexer struct {
		ID   string `xml:"id,attr"`
		Name string `xml:",chardata"`
	} `xml:"jackettindexer"`
	Attrs []torznabAttr `xml:"attr"`
}

type torznabAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

func (it torznabItem) attr(name string) string {
	for _, a := range it.Attrs {
		if strings.EqualFold(a.Name, name) {
			return a.Value
		}
	}
	return ""
}

func (it torznabItem) toRaw() models.RawRelease {
	raw := models.RawRelease{
		Title:     strings.TrimSpace(it.Title),
		GUID:      strings.TrimSpace(it.GUID),
		Indexer:   strings.TrimSpace(it.JackettIndexer.Name),
		IndexerID: strings.TrimSpace(it.JackettIndexer.ID),
		Size:      it.Size,
		InfoURL:   strings.TrimSpace(it.Comments),
		MagnetURL: it.attr("magneturl"),
	}

	if raw.Size == 0 {
		raw.Size = it.Enclosure.Length
	}

	link := strings.TrimSpace(it.Link)
	if link == "" {
		link = strings.TrimSpace(it.Enclosure.URL)
	}
	if strings.HasPrefix(link, "magnet:") {
		if raw.MagnetURL == "" {
			raw.MagnetURL = link
		}
	} else {
		raw.DownloadURL = link
	}

	if seeders, err := strconv.Atoi(it.attr("seeders")); err == nil {
		raw.Seeders = &seeders
	}

	return raw
}
