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

package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	log "github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"github.com/cameo-aphid/aphid/pkg/image"
)

// pluginFile matches plugin scripts. The six upper case hex digits name the
// block the plugin takes over.
var pluginFile = regexp.MustCompile(`^profile_plugin_([0-9A-F]{6}).*\.lua$`)

/*
	Plugin takes over a magic block. For reads, data is nil and Call returns
	the block contents. For writes, data holds the sector the host wrote, and
	what Call returns is ignored.
*/
type Plugin interface {
	Call(op byte, block uint32, retry, sparing byte, data []byte) ([]byte, error)
	Close() error
	Name() string
}

// Plugins maps blocks to the plugins taking them over.
type Plugins map[uint32]Plugin

/*
	LoadPlugins loads all plugin scripts found in dir. A script must define a
	global function

		plugin(op, block, retry, sparing, data)

	where data is a string for writes and nil for reads. For reads, the
	function returns the block contents as a string. A script may also define
	close(), which is called when the plugin is unloaded. Scripts that fail to
	load are skipped.
*/
func LoadPlugins(dir string) (Plugins, error) {

	ret := Plugins{}

	if dir == "" {
		return ret, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading plugin directory: %v", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && pluginFile.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {

		m := pluginFile.FindStringSubmatch(name)
		block, _ := strconv.ParseUint(m[1], 16, 32)
		logger := log.WithFields(log.Fields{
			"plugin": name,
			"block":  fmt.Sprintf("%06X", block),
		})

		if !isPluginBlock(uint32(block)) {
			logger.Warn("block not available for plugins, skipping")
			continue
		}
		if p, ok := ret[uint32(block)]; ok {
			logger.Warnf("block already taken by %s, skipping", p.Name())
			continue
		}

		p, err := newLuaPlugin(filepath.Join(dir, name))
		if err != nil {
			logger.Errorf("error loading plugin: %v", err)
			continue
		}

		ret[uint32(block)] = p
		logger.Info("plugin loaded")
	}

	return ret, nil
}

//
func isPluginBlock(block uint32) bool {
	return BlockPluginFirst <= block && block <= BlockPluginLast
}

// Call runs the plugin for block, if there is one. Read results are padded
// or truncated to sector size.
func (p Plugins) Call(c command, data []byte) ([]byte, bool, error) {

	pl, ok := p[c.block()]
	if !ok || !isPluginBlock(c.block()) {
		return nil, false, nil
	}

	ret, err := pl.Call(c.op(), c.block(), c.retry(), c.sparing(), data)
	if err != nil {
		return nil, true, fmt.Errorf("plugin %s failed: %v", pl.Name(), err)
	}

	if c.op() != OpRead {
		return nil, true, nil
	}

	if len(ret) != image.SectorSize {
		sec := make([]byte, image.SectorSize)
		copy(sec, ret)
		ret = sec
	}
	return ret, true, nil
}

// Names lists the loaded plugins by block.
func (p Plugins) Names() map[string]string {
	ret := make(map[string]string, len(p))
	for block, pl := range p {
		ret[fmt.Sprintf("%06X", block)] = pl.Name()
	}
	return ret
}

//
func (p Plugins) Close() {
	for block, pl := range p {
		if err := pl.Close(); err != nil {
			log.WithField("block", fmt.Sprintf("%06X", block)).Errorf(
				"error closing plugin: %v", err)
		}
	}
}

//
func newLuaPlugin(path string) (*luaPlugin, error) {

	state := lua.NewState()
	if err := state.DoFile(path); err != nil {
		state.Close()
		return nil, err
	}

	fn, ok := state.GetGlobal("plugin").(*lua.LFunction)
	if !ok {
		state.Close()
		return nil, fmt.Errorf("no plugin function defined")
	}

	return &luaPlugin{name: filepath.Base(path), state: state, fn: fn}, nil
}

// luaPlugin is a plugin implemented as a Lua script. A Lua state is not
// safe for concurrent use, hence the mutex.
type luaPlugin struct {
	name  string
	state *lua.LState
	fn    *lua.LFunction
	mutex sync.Mutex
}

//
func (p *luaPlugin) Name() string {
	return p.name
}

//
func (p *luaPlugin) Call(op byte, block uint32, retry, sparing byte,
	data []byte) ([]byte, error) {

	p.mutex.Lock()
	defer p.mutex.Unlock()

	var arg lua.LValue = lua.LNil
	if data != nil {
		arg = lua.LString(data)
	}

	if err := p.state.CallByParam(lua.P{Fn: p.fn, NRet: 1, Protect: true},
		lua.LNumber(op), lua.LNumber(block), lua.LNumber(retry),
		lua.LNumber(sparing), arg); err != nil {
		return nil, err
	}

	ret := p.state.Get(-1)
	p.state.Pop(1)

	if s, ok := ret.(lua.LString); ok {
		return []byte(s), nil
	}
	return nil, nil
}

//
func (p *luaPlugin) Close() error {

	p.mutex.Lock()
	defer p.mutex.Unlock()

	defer p.state.Close()

	if fn, ok := p.state.GetGlobal("close").(*lua.LFunction); ok {
		return p.state.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true})
	}
	return nil
}
