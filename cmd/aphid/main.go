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

package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cameo-aphid/aphid/pkg/run"
)

//
func main() {

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	root := &cobra.Command{
		Use:   "aphid",
		Short: "ProFile hard drive emulator",
		Long: `
aphid emulates a ProFile hard drive for Apple Lisa and Apple /// computers. The
serve command starts the supervisor daemon, all other commands talk to it via
its API, except for sim, which runs a complete drive in process.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		&run.NewServe().Command,
		&run.NewSim().Command,
		&run.NewStatus().Command,
		&run.NewSnoop().Command,
		&run.NewLoad().Command,
		&run.NewImages().Command,
		&run.NewConfig().Command,
		&run.NewDump().Command,
		&run.NewSearch().Command,
		&run.NewVersion().Command,
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
