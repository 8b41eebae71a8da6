// Package topology resolves the DCMIPP capture pipeline from the media
// controller graph to /dev nodes.
package topology

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/smazurov/ispctl/internal/isp"
	"github.com/smazurov/ispctl/internal/logging"
	"github.com/smazurov/ispctl/pkg/linuxav/media"
	"github.com/smazurov/ispctl/pkg/linuxav/v4l2"
)

// MaxNodes bounds every /dev scan: indexes 0 through MaxNodes-1 are probed.
const MaxNodes = 255

// Kind selects which family of device nodes an entity is resolved against.
type Kind int

// Node kinds.
const (
	KindVideo Kind = iota
	KindSubdev
)

func (k Kind) pattern() string {
	if k == KindSubdev {
		return "/dev/v4l-subdev%d"
	}
	return "/dev/video%d"
}

func (k Kind) String() string {
	if k == KindSubdev {
		return "subdev"
	}
	return "video"
}

// Match selects how entity names are compared.
type Match int

// Match modes.
const (
	MatchExact Match = iota
	MatchPrefix
)

func (m Match) matches(name, want string) bool {
	if m == MatchPrefix {
		return strings.HasPrefix(name, want)
	}
	return name == want
}

type devNum struct {
	major uint32
	minor uint32
}

// mediaGraph is the part of a media controller node the locator uses.
type mediaGraph interface {
	Info() (media.DeviceInfo, error)
	Entities() ([]media.Entity, error)
	Close() error
}

// subdevice is the part of a sub-device the locator uses.
type subdevice interface {
	SubdevFormat(pad uint32) (v4l2.MbusFormat, error)
	SubdevSelection(pad, target uint32) (v4l2.Rect, error)
	Close() error
}

// Locator finds media devices and maps graph entities to device nodes.
// The major/minor lookup table of each node kind is built on first use and
// reused for the lifetime of the Locator.
type Locator struct {
	openMedia  func(path string) (mediaGraph, error)
	openSubdev func(path string) (subdevice, error)
	statRdev   func(path string) (devNum, error)
	maxNodes   int
	logger     *slog.Logger

	mu     sync.Mutex
	tables map[Kind]map[devNum]string
}

// NewLocator returns a Locator bound to the real /dev tree.
func NewLocator() *Locator {
	return &Locator{
		openMedia: func(path string) (mediaGraph, error) {
			return media.Open(path)
		},
		openSubdev: func(path string) (subdevice, error) {
			return v4l2.Open(path)
		},
		statRdev: statRdev,
		maxNodes: MaxNodes,
		logger:   logging.GetLogger("topology"),
		tables:   make(map[Kind]map[devNum]string),
	}
}

// DiscoverMediaDevice returns the first /dev/mediaN whose driver is driver.
func (l *Locator) DiscoverMediaDevice(driver string) (string, error) {
	for i := 0; i < l.maxNodes; i++ {
		path := fmt.Sprintf("/dev/media%d", i)
		dev, err := l.openMedia(path)
		if err != nil {
			continue
		}
		info, err := dev.Info()
		_ = dev.Close()
		if err != nil {
			l.logger.Debug("media device info failed", "path", path, "error", err)
			continue
		}
		if info.Driver == driver {
			l.logger.Debug("media device found", "path", path, "model", info.Model)
			return path, nil
		}
	}
	return "", isp.Errorf(isp.ErrNotFound, "no media device with driver %q", driver)
}

// ResolveEntity finds the entity called name (or starting with name, for
// MatchPrefix) in the graph of mediaPath and returns its device node.
func (l *Locator) ResolveEntity(mediaPath, name string, kind Kind, match Match) (string, error) {
	dev, err := l.openMedia(mediaPath)
	if err != nil {
		return "", isp.NewError(isp.ErrNotFound, "open media device "+mediaPath, err)
	}
	entities, err := dev.Entities()
	_ = dev.Close()
	if err != nil {
		return "", isp.NewError(isp.ErrIO, "enumerate entities of "+mediaPath, err)
	}

	table := l.nodeTable(kind)
	found := false
	for _, ent := range entities {
		if !match.matches(ent.Name, name) {
			continue
		}
		found = true
		if path, ok := table[devNum{ent.Major, ent.Minor}]; ok {
			l.logger.Debug("entity resolved", "entity", ent.Name, "node", path)
			return path, nil
		}
	}
	if found {
		return "", isp.Errorf(isp.ErrNotFound, "entity %q has no %s node", name, kind)
	}
	return "", isp.Errorf(isp.ErrNotFound, "entity %q not in %s", name, mediaPath)
}

// nodeTable scans the nodes of kind once. On duplicate numbers the lowest
// index wins, matching an ordered scan.
func (l *Locator) nodeTable(kind Kind) map[devNum]string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if table, ok := l.tables[kind]; ok {
		return table
	}
	table := make(map[devNum]string)
	for i := 0; i < l.maxNodes; i++ {
		path := fmt.Sprintf(kind.pattern(), i)
		num, err := l.statRdev(path)
		if err != nil {
			continue
		}
		if _, dup := table[num]; !dup {
			table[num] = path
		}
	}
	l.tables[kind] = table
	return table
}

func statRdev(path string) (devNum, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return devNum{}, err
	}
	return devNum{major: unix.Major(uint64(st.Rdev)), minor: unix.Minor(uint64(st.Rdev))}, nil
}
