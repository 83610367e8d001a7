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
	"net/url"
	"path"
	"strings"
)

// reference schemes
const (
	RepoScheme  = "repo://"
	HTTPScheme  = "http://"
	HTTPSScheme = "https://"
)

/*
	Resolve opens the image that ref refers to. A reference is either

		repo://<path>			an image in the repository directory repo
		http(s)://<host>/<path>	an image on the web

	Along with the source, Resolve returns the file name of the image as
	given in the reference, from which image name and compressor can be
	derived.
*/
func Resolve(ref, repo string) (io.ReadCloser, string, error) {

	switch {

	case strings.HasPrefix(ref, RepoScheme):
		p := strings.TrimPrefix(ref, RepoScheme)
		src, err := NewFileSource(repo, p)
		if err != nil {
			return nil, "", err
		}
		return src, path.Base(p), nil

	case strings.HasPrefix(ref, HTTPScheme), strings.HasPrefix(ref, HTTPSScheme):
		u, err := url.Parse(ref)
		if err != nil {
			return nil, "", fmt.Errorf("invalid reference: %v", err)
		}
		src, err := NewHTTPSource(ref)
		if err != nil {
			return nil, "", err
		}
		return src, path.Base(u.Path), nil
	}

	return nil, "", fmt.Errorf("unsupported reference: %s", ref)
}

// IsReference reports whether ref uses one of the reference schemes.
func IsReference(ref string) bool {
	for _, s := range []string{RepoScheme, HTTPScheme, HTTPSScheme} {
		if strings.HasPrefix(ref, s) {
			return true
		}
	}
	return false
}
