/*
   Aphid - Apple parallel port hard drive emulator
   Copyright (c) 2022, The Aphid Authors

   This file is part of Aphid.

   Aphid is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   Aphid is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with Aphid. If not, see <http://www.gnu.org/licenses/>.
*/

package repo

import (
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cameo-aphid/aphid/pkg/image"
)

// MaxDownload is the most that is read from a web source, the size of
// the largest image plus some leeway for archive overhead.
const MaxDownload = 2*image.SizeProFile10 + 65536

// HTTPTimeout bounds a complete download.
const HTTPTimeout = 5 * time.Minute

var httpClient = &http.Client{Timeout: HTTPTimeout}

// NewHTTPSource starts downloading an image from url.
func NewHTTPSource(url string) (*HTTPSource, error) {

	resp, err := httpClient.Get(url)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("downloading %s failed: %s", url, resp.Status)
	}

	log.WithFields(log.Fields{
		"url":    url,
		"length": resp.ContentLength}).Debug("downloading image")

	return &HTTPSource{
		url:      url,
		response: resp,
		reader:   io.LimitReader(resp.Body, MaxDownload)}, nil
}

// HTTPSource reads an image from the web.
type HTTPSource struct {
	url      string
	response *http.Response
	reader   io.Reader
}

//
func (hs *HTTPSource) Read(p []byte) (n int, err error) {
	return hs.reader.Read(p)
}

//
func (hs *HTTPSource) Close() error {
	return hs.response.Body.Close()
}
