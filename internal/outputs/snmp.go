package outputs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/config"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/metrics"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/vitals"
)

// Number of recent audits exposed in the recent audits table
const snmpRecentAudits = 50

// OID layout below the enterprise OID:
//
//	.1.<n>.0               general counters
//	.2.<site>.<column>     per-site table, sites ordered by name
//	.3.<site>.<metric>.1   latest metric value (ms, CLS in thousandths)
//	.3.<site>.<metric>.2   latest metric rating
//	.4.<n>.<column>        recent audits, oldest first
const (
	generalBranch = ".1"
	siteBranch    = ".2"
	vitalsBranch  = ".3"
	recentBranch  = ".4"
)

// Trap types, appended to <enterprise>.0
const (
	trapAuditFailure   = 1
	trapScoreDegraded  = 2
	trapScoreRecovered = 3
)

// snmpTrapOID.0 from SNMPv2-MIB
const snmpTrapOID = ".1.3.6.1.6.3.1.1.4.1.0"

// SNMPOutput provides an SNMP agent for polling site scores and vitals
type SNMPOutput struct {
	config *config.SNMPConfig
	stats  *metrics.Collector
	recent *metrics.ResultsCache
	done   chan struct{}
	wg     sync.WaitGroup

	snmpConn   *net.UDPConn
	httpServer *http.Server

	trapMu   sync.Mutex
	degraded map[string]bool

	// GoSNMP senders share a connection and request ids
	sendMu           sync.Mutex
	trapDestinations []*gosnmp.GoSNMP
}

// NewSNMPOutput creates the agent and starts its UDP and HTTP listeners.
// Returns nil when disabled.
func NewSNMPOutput(cfg *config.SNMPConfig) (*SNMPOutput, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	s := newSNMPAgent(cfg)

	if err := s.initializeTrapDestinations(); err != nil {
		log.Printf("Warning: Failed to initialize trap destinations: %v", err)
	}

	if err := s.startSNMPServer(); err != nil {
		return nil, fmt.Errorf("failed to start SNMP server: %w", err)
	}

	s.startHTTPServer()

	log.Printf("SNMP agent listening on %s:%d (community: %s)", cfg.ListenAddress, cfg.Port, cfg.Community)
	log.Printf("SNMP HTTP API listening on %s:%d/snmp/data", cfg.ListenAddress, cfg.Port+1)
	log.Printf("Enterprise OID: %s", cfg.EnterpriseOID)

	return s, nil
}

func newSNMPAgent(cfg *config.SNMPConfig) *SNMPOutput {
	return &SNMPOutput{
		config:   cfg,
		stats:    metrics.NewCollector(),
		recent:   metrics.NewResultsCache(snmpRecentAudits),
		done:     make(chan struct{}),
		degraded: make(map[string]bool),
	}
}

// initializeTrapDestinations connects a v2c sender per configured host:port
func (s *SNMPOutput) initializeTrapDestinations() error {
	for _, dest := range s.config.TrapDestinations {
		host, portStr, err := net.SplitHostPort(dest)
		if err != nil {
			return fmt.Errorf("invalid trap destination %q: %w", dest, err)
		}
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return fmt.Errorf("invalid trap destination port %q: %w", dest, err)
		}

		g := &gosnmp.GoSNMP{
			Target:    host,
			Port:      uint16(port),
			Community: s.config.Community,
			Version:   gosnmp.Version2c,
			Timeout:   2 * time.Second,
			Retries:   1,
		}
		if err := g.Connect(); err != nil {
			return fmt.Errorf("failed to connect trap destination %s: %w", dest, err)
		}
		s.trapDestinations = append(s.trapDestinations, g)
	}
	return nil
}

// startSNMPServer starts the SNMP UDP server
func (s *SNMPOutput) startSNMPServer() error {
	addr := fmt.Sprintf("%s:%d", s.config.ListenAddress, s.config.Port)
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}
	s.snmpConn = conn

	s.wg.Add(1)
	go s.handleSNMPPackets()

	return nil
}

// handleSNMPPackets reads requests until Close
func (s *SNMPOutput) handleSNMPPackets() {
	defer s.wg.Done()
	defer s.snmpConn.Close()

	buffer := make([]byte, 65535)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		// Deadline lets the loop notice Close
		s.snmpConn.SetReadDeadline(time.Now().Add(1 * time.Second))

		n, remoteAddr, err := s.snmpConn.ReadFromUDP(buffer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			log.Printf("SNMP read error: %v", err)
			continue
		}

		packet := make([]byte, n)
		copy(packet, buffer[:n])
		go s.processSNMPPacket(packet, remoteAddr)
	}
}

// processSNMPPacket answers a single request
func (s *SNMPOutput) processSNMPPacket(data []byte, remoteAddr *net.UDPAddr) {
	packet, err := gosnmp.Default.SnmpDecodePacket(data)
	if err != nil {
		log.Printf("Failed to decode SNMP packet: %v", err)
		return
	}

	response := s.respond(packet)
	if response == nil {
		return
	}

	responseData, err := response.MarshalMsg()
	if err != nil {
		log.Printf("Failed to marshal SNMP response: %v", err)
		return
	}

	if _, err := s.snmpConn.WriteToUDP(responseData, remoteAddr); err != nil {
		log.Printf("Failed to send SNMP response: %v", err)
	}
}

// respond builds the response PDU, or nil when the request is dropped
func (s *SNMPOutput) respond(packet *gosnmp.SnmpPacket) *gosnmp.SnmpPacket {
	if packet.Community != s.config.Community {
		log.Printf("SNMP request with invalid community")
		return nil
	}

	response := &gosnmp.SnmpPacket{
		Version:   packet.Version,
		Community: packet.Community,
		PDUType:   gosnmp.GetResponse,
		RequestID: packet.RequestID,
	}

	tree := s.buildTree()

	switch packet.PDUType {
	case gosnmp.GetRequest:
		for _, v := range packet.Variables {
			response.Variables = append(response.Variables, tree.get(v.Name))
		}
	case gosnmp.GetNextRequest:
		for _, v := range packet.Variables {
			response.Variables = append(response.Variables, tree.next(v.Name))
		}
	case gosnmp.GetBulkRequest:
		maxReps := packet.MaxRepetitions
		if maxReps == 0 {
			maxReps = 10
		}
		for _, v := range packet.Variables {
			current := v.Name
			for i := uint32(0); i < maxReps; i++ {
				pdu := tree.next(current)
				if pdu.Type == gosnmp.EndOfMibView {
					break
				}
				response.Variables = append(response.Variables, pdu)
				current = pdu.Name
			}
		}
	default:
		log.Printf("Unsupported SNMP PDU type: %v", packet.PDUType)
		return nil
	}

	return response
}

// oidTree is a sorted snapshot of every exposed OID
type oidTree struct {
	pdus  []gosnmp.SnmpPDU
	index map[string]int
}

func (t *oidTree) get(oid string) gosnmp.SnmpPDU {
	if i, ok := t.index[oid]; ok {
		return t.pdus[i]
	}
	return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.NoSuchInstance}
}

func (t *oidTree) next(oid string) gosnmp.SnmpPDU {
	i := sort.Search(len(t.pdus), func(i int) bool {
		return oidCompare(t.pdus[i].Name, oid) > 0
	})
	if i < len(t.pdus) {
		return t.pdus[i]
	}
	return gosnmp.SnmpPDU{Name: oid, Type: gosnmp.EndOfMibView}
}

func (t *oidTree) names() []string {
	out := make([]string, len(t.pdus))
	for i, p := range t.pdus {
		out[i] = p.Name
	}
	return out
}

// buildTree snapshots the collected stats into an OID tree
func (s *SNMPOutput) buildTree() *oidTree {
	base := s.config.EnterpriseOID
	sites := s.stats.Sites()
	recent := s.recent.GetLast(snmpRecentAudits)

	var pdus []gosnmp.SnmpPDU
	add := func(oid string, typ gosnmp.Asn1BER, value interface{}) {
		pdus = append(pdus, gosnmp.SnmpPDU{Name: oid, Type: typ, Value: value})
	}

	var totalAudits, totalFailures int64
	for _, st := range sites {
		totalAudits += st.Audits
		totalFailures += st.Failures
	}
	general := base + generalBranch
	add(general+".1.0", gosnmp.Integer, len(recent))
	add(general+".2.0", gosnmp.Integer, snmpRecentAudits)
	add(general+".3.0", gosnmp.Integer, len(sites))
	add(general+".4.0", gosnmp.Counter64, uint64(totalAudits))
	add(general+".5.0", gosnmp.Counter64, uint64(totalFailures))

	for i, st := range sites {
		row := fmt.Sprintf("%s%s.%d", base, siteBranch, i+1)
		add(row+".1", gosnmp.OctetString, st.Name)
		add(row+".2", gosnmp.OctetString, st.URL)
		add(row+".3", gosnmp.Counter64, uint64(st.Audits))
		add(row+".4", gosnmp.Counter64, uint64(st.Failures))
		add(row+".5", gosnmp.Gauge32, uint(st.LastScore))
		add(row+".6", gosnmp.Gauge32, uint(math.Round(st.AverageScore)))
		add(row+".7", gosnmp.Counter64, uint64(st.LastAudit.Unix()))
		add(row+".8", gosnmp.Integer, boolInt(st.LastSuccess))

		for m, id := range vitals.AllMetrics {
			reading, ok := findReading(st.LatestVitals, string(id))
			if !ok {
				continue
			}
			cell := fmt.Sprintf("%s%s.%d.%d", base, vitalsBranch, i+1, m+1)
			add(cell+".1", gosnmp.Gauge32, gaugeValue(id, reading.Value))
			add(cell+".2", gosnmp.OctetString, reading.Rating)
		}
	}

	for i, r := range recent {
		row := fmt.Sprintf("%s%s.%d", base, recentBranch, i+1)
		add(row+".1", gosnmp.OctetString, r.Site.Name)
		add(row+".2", gosnmp.Counter64, uint64(r.Timestamp.Unix()))
		add(row+".3", gosnmp.Integer, boolInt(r.Status.Success))
		add(row+".4", gosnmp.Gauge32, uint(r.Score))
		add(row+".5", gosnmp.Gauge32, uint(max(r.Network.TotalDurationMs, 0)))
	}

	sort.Slice(pdus, func(i, j int) bool { return oidCompare(pdus[i].Name, pdus[j].Name) < 0 })

	tree := &oidTree{pdus: pdus, index: make(map[string]int, len(pdus))}
	for i, p := range pdus {
		tree.index[p.Name] = i
	}
	return tree
}

func findReading(readings []models.VitalReading, metric string) (models.VitalReading, bool) {
	for _, r := range readings {
		if r.Metric == metric {
			return r, true
		}
	}
	return models.VitalReading{}, false
}

// gaugeValue encodes a metric as a non-negative integer; CLS is unitless so
// it is scaled to thousandths
func gaugeValue(id vitals.MetricID, value float64) uint {
	if id == vitals.CumulativeLayoutShift {
		value *= 1000
	}
	if value < 0 {
		return 0
	}
	return uint(math.Round(value))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// oidCompare compares two dotted OIDs numerically, arc by arc
func oidCompare(oid1, oid2 string) int {
	parts1 := strings.Split(strings.TrimPrefix(oid1, "."), ".")
	parts2 := strings.Split(strings.TrimPrefix(oid2, "."), ".")

	for i := 0; i < len(parts1) && i < len(parts2); i++ {
		n1, _ := strconv.Atoi(parts1[i])
		n2, _ := strconv.Atoi(parts2[i])

		if n1 < n2 {
			return -1
		} else if n1 > n2 {
			return 1
		}
	}

	if len(parts1) < len(parts2) {
		return -1
	} else if len(parts1) > len(parts2) {
		return 1
	}
	return 0
}

// startHTTPServer serves the agent's data as JSON on Port+1
func (s *SNMPOutput) startHTTPServer() {
	addr := fmt.Sprintf("%s:%d", s.config.ListenAddress, s.config.Port+1)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.httpHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("SNMP HTTP server error: %v", err)
		}
	}()
}

func (s *SNMPOutput) httpHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/snmp/data", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.GetSNMPData())
	})
	mux.HandleFunc("/snmp/oids", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.buildTree().names())
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding SNMP data: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// SNMPSiteData is the JSON view of one site row
type SNMPSiteData struct {
	URL          string             `json:"url"`
	Audits       int64              `json:"audits"`
	Failures     int64              `json:"failures"`
	LastScore    int                `json:"last_score"`
	AverageScore float64            `json:"average_score"`
	LastAudit    int64              `json:"last_audit"`
	Vitals       map[string]float64 `json:"vitals,omitempty"`
}

// SNMPData is the JSON view of the agent's tables
type SNMPData struct {
	RecentAudits   int                     `json:"recent_audits"`
	MonitoredSites int                     `json:"monitored_sites"`
	Sites          map[string]SNMPSiteData `json:"sites"`
}

// GetSNMPData returns the agent's per-site data
func (s *SNMPOutput) GetSNMPData() SNMPData {
	sites := s.stats.Sites()
	data := SNMPData{
		RecentAudits:   s.recent.Count(),
		MonitoredSites: len(sites),
		Sites:          make(map[string]SNMPSiteData, len(sites)),
	}
	for _, st := range sites {
		row := SNMPSiteData{
			URL:          st.URL,
			Audits:       st.Audits,
			Failures:     st.Failures,
			LastScore:    st.LastScore,
			AverageScore: st.AverageScore,
			LastAudit:    st.LastAudit.Unix(),
		}
		if len(st.LatestVitals) > 0 {
			row.Vitals = make(map[string]float64, len(st.LatestVitals))
			for _, v := range st.LatestVitals {
				row.Vitals[v.Metric] = v.Value
			}
		}
		data.Sites[st.Name] = row
	}
	return data
}

// Write records the audit for polling and sends any traps it triggers
func (s *SNMPOutput) Write(result *models.AuditResult) error {
	if s == nil {
		return nil
	}

	s.stats.RecordResult(result)
	s.recent.Add(result)

	for _, trap := range s.trapsFor(result) {
		s.SendTrap(trap.kind, trap.message)
	}
	return nil
}

type pendingTrap struct {
	kind    int
	message string
}

// trapsFor decides which traps an audit raises. Score traps fire on the
// transition across the threshold, not on every poor audit.
func (s *SNMPOutput) trapsFor(result *models.AuditResult) []pendingTrap {
	s.trapMu.Lock()
	defer s.trapMu.Unlock()

	site := result.Site.Name

	if !result.Status.Success {
		msg := "unknown error"
		if result.Error != nil {
			msg = result.Error.ErrorMessage
		}
		return []pendingTrap{{trapAuditFailure, fmt.Sprintf("Audit failure for %s: %s", site, msg)}}
	}

	below := result.Score < s.config.TrapScoreThreshold
	was := s.degraded[site]
	s.degraded[site] = below

	switch {
	case below && !was:
		return []pendingTrap{{trapScoreDegraded, fmt.Sprintf("Performance degraded for %s: score %d", site, result.Score)}}
	case !below && was:
		return []pendingTrap{{trapScoreRecovered, fmt.Sprintf("Performance recovered for %s: score %d", site, result.Score)}}
	}
	return nil
}

// SendTrap sends a v2c trap to every configured destination. Calls are
// serialized.
func (s *SNMPOutput) SendTrap(trapType int, message string) error {
	if s == nil || len(s.trapDestinations) == 0 {
		return nil
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	trap := gosnmp.SnmpTrap{
		Variables: []gosnmp.SnmpPDU{
			{Name: snmpTrapOID, Type: gosnmp.ObjectIdentifier, Value: fmt.Sprintf("%s.0.%d", s.config.EnterpriseOID, trapType)},
			{Name: s.config.EnterpriseOID + ".0.1", Type: gosnmp.OctetString, Value: message},
		},
	}

	for _, dest := range s.trapDestinations {
		if _, err := dest.SendTrap(trap); err != nil {
			log.Printf("Failed to send SNMP trap to %s: %v", dest.Target, err)
		} else {
			log.Printf("SNMP trap sent to %s: %s", dest.Target, message)
		}
	}
	return nil
}

// Name returns the output module name
func (s *SNMPOutput) Name() string {
	return "snmp"
}

// Close shuts down the SNMP agent
func (s *SNMPOutput) Close() error {
	if s == nil {
		return nil
	}

	log.Println("Shutting down SNMP agent...")

	close(s.done)

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down SNMP HTTP server: %v", err)
		}
	}

	s.wg.Wait()

	for _, dest := range s.trapDestinations {
		if dest.Conn != nil {
			dest.Conn.Close()
		}
	}

	log.Printf("SNMP agent stopped. Final statistics:")
	for _, st := range s.stats.Sites() {
		log.Printf("  %s: %d audits (%d failed), average score %.1f",
			st.Name, st.Audits, st.Failures, st.AverageScore)
	}

	return nil
}
