package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// DefaultPort UDP 发现端口
const DefaultPort = 47815

// Magic 标识，避免误解析其他应用的 UDP 包
const Magic = "live-relay-v1"

// Announcement 信令服务器广播的数据结构
type Announcement struct {
	Magic string `json:"magic"`
	Name  string `json:"name"`
	Host  string `json:"host"`
	Port  int    `json:"port"`
	Path  string `json:"path"`
}

// SignalURL 返回可直接拨号的 WebSocket 地址
func (a Announcement) SignalURL() string {
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(a.Host, fmt.Sprint(a.Port)), a.Path)
}

// Beacon 描述一次广播任务
type Beacon struct {
	Announcement
	// Target 为广播目标地址，为空时使用 255.255.255.255:DefaultPort
	Target   string
	Interval time.Duration
}

// Run 周期性通过 UDP 广播信令地址，直到 ctx 结束
func (b Beacon) Run(ctx context.Context) error {
	if b.Host == "" || b.Port <= 0 {
		return fmt.Errorf("invalid host or port for beacon")
	}
	ann := b.Announcement
	ann.Magic = Magic
	if ann.Name == "" {
		ann.Name = ann.Host
	}
	payload, err := json.Marshal(ann)
	if err != nil {
		return err
	}

	target := &net.UDPAddr{IP: net.IPv4bcast, Port: DefaultPort}
	if b.Target != "" {
		target, err = net.ResolveUDPAddr("udp4", b.Target)
		if err != nil {
			return err
		}
	}
	interval := b.Interval
	if interval <= 0 {
		interval = 3 * time.Second
	}

	conn, err := net.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		_, _ = conn.WriteTo(payload, target)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Discover 监听 addr 上的广播，直到超时或 ctx 结束，返回去重后的信令服务器列表
func Discover(ctx context.Context, addr string, timeout time.Duration) ([]Announcement, error) {
	if addr == "" {
		addr = fmt.Sprintf(":%d", DefaultPort)
	}
	conn, err := net.ListenPacket("udp4", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	// ctx 结束时关闭连接，阻塞中的 ReadFrom 随之返回
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	found := newRegistry()
	buf := make([]byte, 1024)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return found.list(), nil
		}
		found.add(buf[:n])
	}
}

type registry struct {
	order []Announcement
	seen  map[string]struct{}
}

func newRegistry() *registry {
	return &registry{seen: make(map[string]struct{})}
}

func (r *registry) add(packet []byte) {
	var ann Announcement
	if json.Unmarshal(packet, &ann) != nil || !ann.valid() {
		return
	}
	key := ann.SignalURL()
	if _, dup := r.seen[key]; dup {
		return
	}
	r.seen[key] = struct{}{}
	r.order = append(r.order, ann)
}

func (r *registry) list() []Announcement {
	return r.order
}

func (a Announcement) valid() bool {
	return a.Magic == Magic && a.Host != "" && a.Port > 0
}

// LocalIPv4 返回本机用于广播的 IPv4 地址，优先选择私有网段地址
func LocalIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	var fallback string
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipnet.IP.To4()
		if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
			continue
		}
		if ip.IsPrivate() {
			return ip.String()
		}
		if fallback == "" {
			fallback = ip.String()
		}
	}
	return fallback
}
