package services

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Riboost-Studio/refugio-pos-printing/internal/model"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/settings"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/utils"
)

// --- Discovery Logic ---

const (
	// EPOSPort is where ePOS-Print printers serve their HTTP endpoint.
	EPOSPort     = 80
	scanWorkers  = 50
	probeTimeout = 300 * time.Millisecond
)

// Confirmer decides whether a printer found at ip is added, and under which name.
type Confirmer interface {
	Confirm(ip string) (name string, ok bool)
}

// AcceptAll adds every printer found with its default name.
type AcceptAll struct{}

func (AcceptAll) Confirm(string) (string, bool) { return "", true }

// Prompt asks the operator on the terminal.
type Prompt struct {
	reader *bufio.Reader
	out    io.Writer
}

func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{reader: bufio.NewReader(in), out: out}
}

func (p *Prompt) Confirm(ip string) (string, bool) {
	fmt.Fprintf(p.out, "Found printer at %s. Add this printer? (y/n): ", ip)
	ans, _ := p.reader.ReadString('\n')
	if strings.TrimSpace(strings.ToLower(ans)) != "y" {
		return "", false
	}
	fmt.Fprint(p.out, "  Name (e.g., Cocina): ")
	name, _ := p.reader.ReadString('\n')
	return strings.TrimSpace(name), true
}

// Scanner probes hosts for an open ePOS port with a pool of workers.
type Scanner struct {
	Port    int
	Workers int
	Timeout time.Duration
	probe   func(ctx context.Context, ip string, port int, timeout time.Duration) bool
}

func NewScanner() *Scanner {
	return &Scanner{Port: EPOSPort, Workers: scanWorkers, Timeout: probeTimeout, probe: utils.Probe}
}

// Hosts24 lists the host addresses .1 to .254 of a /24 given as "a.b.c".
func Hosts24(subnet string) []string {
	hosts := make([]string, 0, 254)
	for i := 1; i <= 254; i++ {
		hosts = append(hosts, fmt.Sprintf("%s.%d", subnet, i))
	}
	return hosts
}

// Scan returns the hosts that accepted a connection, in address order.
func (s *Scanner) Scan(ctx context.Context, hosts []string) []string {
	ipChan := make(chan string)
	foundChan := make(chan string, len(hosts))
	var wg sync.WaitGroup

	workers := max(s.Workers, 1)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ip := range ipChan {
				if s.probe(ctx, ip, s.Port, s.Timeout) {
					foundChan <- ip
				}
			}
		}()
	}

feed:
	for _, ip := range hosts {
		select {
		case ipChan <- ip:
		case <-ctx.Done():
			break feed
		}
	}
	close(ipChan)
	wg.Wait()
	close(foundChan)

	var found []string
	for ip := range foundChan {
		found = append(found, ip)
	}
	slices.SortFunc(found, compareAddr)
	return found
}

func compareAddr(a, b string) int {
	x, errA := netip.ParseAddr(a)
	y, errB := netip.ParseAddr(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return x.Compare(y)
}

// Discovery scans the local network and adds the printers it finds to the settings.
type Discovery struct {
	store   *settings.Store
	scanner *Scanner
	confirm Confirmer
	logger  *slog.Logger
}

func NewDiscovery(store *settings.Store, scanner *Scanner, confirm Confirmer, logger *slog.Logger) *Discovery {
	if scanner == nil {
		scanner = NewScanner()
	}
	if confirm == nil {
		confirm = AcceptAll{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{store: store, scanner: scanner, confirm: confirm, logger: logger}
}

// Run scans the /24 of the first local IPv4 address.
func (d *Discovery) Run(ctx context.Context) ([]model.Printer, error) {
	localIP, err := utils.DetectLocalIP()
	if err != nil {
		return nil, fmt.Errorf("detect local address: %w", err)
	}
	subnet, err := utils.Subnet24(localIP)
	if err != nil {
		return nil, err
	}
	return d.Scan(ctx, subnet)
}

// Scan probes subnet ("a.b.c") and adds what the confirmer accepts. Only printers not
// known before are returned.
func (d *Discovery) Scan(ctx context.Context, subnet string) ([]model.Printer, error) {
	d.logger.Info("scanning subnet", "subnet", subnet+".0/24", "port", d.scanner.Port)
	return d.Add(ctx, d.scanner.Scan(ctx, Hosts24(subnet)))
}

// Add offers each address to the confirmer and stores the accepted ones.
func (d *Discovery) Add(ctx context.Context, ips []string) ([]model.Printer, error) {
	var added []model.Printer
	for _, ip := range ips {
		name, ok := d.confirm.Confirm(ip)
		if !ok {
			continue
		}
		p := settings.ManualPrinter(ip)
		if name != "" {
			p.Name = name
		}
		saved, isNew, err := d.store.AddDiscovered(ctx, p)
		if err != nil {
			return added, fmt.Errorf("add printer %s: %w", ip, err)
		}
		if isNew {
			d.logger.Info("printer found", "printer", saved.Name, "ip", saved.IP)
			added = append(added, saved)
		}
	}
	return added, nil
}
