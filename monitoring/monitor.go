// Package monitoring turns a running simulation into an HTTP server that
// external tools can use to inspect and control it.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"github.com/syifan/goseth"

	"github.com/sarchlab/desim/sim"
)

// Module is anything the monitor can list and inspect.
type Module interface {
	Name() string
}

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	engine      sim.Engine
	portNumber  int
	openBrowser bool
	logger      logrus.FieldLogger

	modulesLock sync.RWMutex
	modules     map[string]Module

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
	eventBar         *ProgressBar

	server   *http.Server
	listener net.Listener
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		logger:  logrus.StandardLogger(),
		modules: make(map[string]Module),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Warnf(
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.",
			portNumber)

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes the monitor open its URL in a browser once the server
// starts.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// WithLogger sets the logger used to report the server status.
func (m *Monitor) WithLogger(logger logrus.FieldLogger) *Monitor {
	m.logger = logger
	return m
}

// RegisterEngine registers the engine that is used in the simulation.
func (m *Monitor) RegisterEngine(e sim.Engine) {
	m.engine = e
}

// RegisterModule registers a module to be monitored.
func (m *Monitor) RegisterModule(module Module) {
	m.modulesLock.Lock()
	defer m.modulesLock.Unlock()

	m.modules[module.Name()] = module
}

// UnregisterModule stops monitoring the module with the given name.
func (m *Monitor) UnregisterModule(name string) {
	m.modulesLock.Lock()
	defer m.modulesLock.Unlock()

	delete(m.modules, name)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars

	if m.eventBar == pb {
		m.eventBar = nil
	}
}

// TrackEvents creates a progress bar that follows the number of processed
// events. A total of 0 means the number of events is unknown.
func (m *Monitor) TrackEvents(total uint64) *ProgressBar {
	bar := m.CreateProgressBar("Events", total)

	m.progressBarsLock.Lock()
	m.eventBar = bar
	m.progressBarsLock.Unlock()

	return bar
}

// Func updates the event progress bar after each event.
func (m *Monitor) Func(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosAfterEvent {
		return
	}

	progress, ok := ctx.Detail.(sim.Progress)
	if !ok {
		return
	}

	m.progressBarsLock.Lock()
	bar := m.eventBar
	m.progressBarsLock.Unlock()

	if bar != nil {
		bar.SetFinished(progress.NumEvents)
	}
}

// Router returns the HTTP routes served by the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/stop", m.stopEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/state", m.state)
	r.HandleFunc("/api/list_modules", m.listModules)
	r.HandleFunc("/api/module/{name}", m.listModuleDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	return r
}

// StartServer starts the monitor as a web server with a custom port if wanted.
func (m *Monitor) StartServer() error {
	if m.engine == nil {
		return errors.New("monitor has no engine registered")
	}

	actualPort := fmt.Sprintf(":%d", m.portNumber)

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return err
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	m.logger.Infof("Monitoring simulation with %s", url)

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.WithError(err).Error("monitoring server stopped")
		}
	}()

	if m.openBrowser {
		browser.Stdout = os.Stderr
		if err := browser.OpenURL(url); err != nil {
			m.logger.WithError(err).Warn("cannot open browser")
		}
	}

	return nil
}

// Addr returns the address the server listens on. It is empty if the server
// is not running.
func (m *Monitor) Addr() string {
	if m.listener == nil {
		return ""
	}

	return fmt.Sprintf("localhost:%d", m.listener.Addr().(*net.TCPAddr).Port)
}

// StopServer closes the web server.
func (m *Monitor) StopServer() error {
	if m.server == nil {
		return nil
	}

	err := m.server.Close()
	m.server = nil
	m.listener = nil

	return err
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Continue()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) stopEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Stop()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	now := m.engine.CurrentTime()
	fmt.Fprintf(w, "{\"now\":%.10f}", now)
}

type stateRsp struct {
	State         string  `json:"state"`
	Now           float64 `json:"now"`
	NumEvents     uint64  `json:"num_events"`
	PendingEvents int     `json:"pending_events"`
}

func (m *Monitor) state(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, stateRsp{
		State:         m.engine.State().String(),
		Now:           float64(m.engine.CurrentTime()),
		NumEvents:     m.engine.NumEvents(),
		PendingEvents: m.engine.NumPendingEvents(),
	})
}

func (m *Monitor) listModules(w http.ResponseWriter, _ *http.Request) {
	m.modulesLock.RLock()
	names := make([]string, 0, len(m.modules))
	for name := range m.modules {
		names = append(names, name)
	}
	m.modulesLock.RUnlock()

	sort.Strings(names)

	m.writeJSON(w, names)
}

func (m *Monitor) listModuleDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	module := m.findModuleOr404(w, name)
	if module == nil {
		return
	}

	m.serializeModule(w, module, nil)
}

type fieldReq struct {
	ModuleName string `json:"module_name,omitempty"`
	FieldName  string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	jsonString := mux.Vars(r)["json"]
	req := fieldReq{}

	err := json.Unmarshal([]byte(jsonString), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	module := m.findModuleOr404(w, req.ModuleName)
	if module == nil {
		return
	}

	m.serializeModule(w, module, strings.Split(req.FieldName, "."))
}

func (m *Monitor) serializeModule(
	w http.ResponseWriter,
	module Module,
	entryPoint []string,
) {
	serializer := goseth.NewSerializer()
	serializer.SetRoot(module)
	serializer.SetMaxDepth(1)

	if len(entryPoint) > 0 {
		err := serializer.SetEntryPoint(entryPoint)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	buf := bytes.NewBuffer(nil)

	err := serializer.Serialize(buf)
	if err != nil {
		m.internalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

func (m *Monitor) findModuleOr404(
	w http.ResponseWriter,
	name string,
) Module {
	m.modulesLock.RLock()
	module, found := m.modules[name]
	m.modulesLock.RUnlock()

	if !found {
		http.Error(w, "Module not found", http.StatusNotFound)
		return nil
	}

	return module
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]ProgressBarStatus, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.Status())
	}
	m.progressBarsLock.Unlock()

	m.writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()

	process, err := process.NewProcess(int32(pid))
	if err != nil {
		m.internalError(w, err)
		return
	}

	cpuPercent, err := process.CPUPercent()
	if err != nil {
		m.internalError(w, err)
		return
	}

	memorySize, err := process.MemoryInfo()
	if err != nil {
		m.internalError(w, err)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		m.internalError(w, err)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		m.internalError(w, err)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.internalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (m *Monitor) internalError(w http.ResponseWriter, err error) {
	m.logger.WithError(err).Error("monitoring request failed")
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

var _ sim.Hook = (*Monitor)(nil)
