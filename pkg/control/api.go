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

/*
	Package control is the HTTP API of the supervisor daemon. It reports
	daemon status and shared memory, and lets images be switched, imported,
	and searched.
*/
package control

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/cameo-aphid/aphid/pkg/daemon"
	"github.com/cameo-aphid/aphid/pkg/repo"
)

// DefaultPort is used when the API address does not name a port.
const DefaultPort = 8888

// Snapshotter is anything that yields raw snapshots of the shared memory
// region, the simulated one as well as the one on real PRUs.
type Snapshotter interface {
	Snapshot() []byte
}

//
type APIServer interface {
	Serve() error
	Stop() error
}

/*
	NewAPIServer creates the API server for daemon d. region and index are
	optional. Without region, shared memory can not be inspected. Without
	index, repository search is unavailable, but repository references can
	still be loaded as long as repository is set.
*/
func NewAPIServer(address, repository string, d *daemon.Daemon,
	region Snapshotter, index *repo.Index) APIServer {
	return &api{
		address:    address,
		repository: repository,
		daemon:     d,
		region:     region,
		index:      index,
	}
}

//
type api struct {
	address    string
	repository string
	server     *http.Server
	daemon     *daemon.Daemon
	region     Snapshotter
	index      *repo.Index
}

//
func (a *api) Serve() error {

	addr := a.address
	if !strings.Contains(addr, ":") {
		addr = fmt.Sprintf("%s:%d", addr, DefaultPort)
	}

	a.server = &http.Server{
		Addr:              addr,
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.WithField("address", addr).Info("API server listening")

	if err := a.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

//
func (a *api) Stop() error {

	if a.server == nil {
		return nil
	}

	log.Info("API server stopping...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := a.server.Shutdown(ctx)
	if err != nil {
		log.Errorf("error stopping API server: %v", err)
	} else {
		log.Info("API server stopped")
	}
	return err
}

//
func (a *api) router() *mux.Router {

	router := mux.NewRouter().StrictSlash(true)

	router.HandleFunc("/status", a.status).Methods("GET")
	router.HandleFunc("/shmem", a.shmem).Methods("GET")
	router.HandleFunc("/version", a.version).Methods("GET")

	router.HandleFunc("/image", a.load).Methods("PUT")
	router.HandleFunc("/images", a.images).Methods("GET")
	router.HandleFunc("/block/{block}", a.block).Methods("GET")
	router.HandleFunc("/plugins", a.plugins).Methods("GET")

	router.HandleFunc("/config", a.getConfig).Methods("GET")
	router.HandleFunc("/config", a.setConfig).Methods("PUT")

	router.HandleFunc("/search", a.search).Methods("GET")

	return router
}
