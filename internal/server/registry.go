package server

// Ad 是当前正在播放的广告
type Ad struct {
	ID    string
	URL   string
	Muted bool
}

// Room 保存一个房间的推流端、控制端和观众列表
type Room struct {
	ID           string
	Publisher    *Session
	Controller   *Session
	Viewers      map[string]*Session // viewerID -> Session
	StreamActive bool
	CurrentAd    *Ad
}

func NewRoom(id string) *Room {
	return &Room{
		ID:      id,
		Viewers: make(map[string]*Session),
	}
}

func (r *Room) AddViewer(viewerID string, s *Session) {
	r.Viewers[viewerID] = s
}

func (r *Room) RemoveViewer(viewerID string) {
	delete(r.Viewers, viewerID)
}

// Empty 房间内没有任何连接时返回 true
func (r *Room) Empty() bool {
	return r.Publisher == nil && r.Controller == nil && len(r.Viewers) == 0
}

func (r *Room) isPublisher(s *Session) bool {
	return s != nil && r.Publisher == s
}

// isViewer 判断会话是否仍以自己的 viewerID 登记在房间中
func (r *Room) isViewer(s *Session) bool {
	return s != nil && s.ViewerID != "" && r.Viewers[s.ViewerID] == s
}

// viewerSessions 返回所有观众会话，并附加额外的目标（例如控制端）
func (r *Room) viewerSessions(extra ...*Session) []*Session {
	out := make([]*Session, 0, len(r.Viewers)+len(extra))
	for _, v := range r.Viewers {
		out = append(out, v)
	}
	return append(out, extra...)
}

// Counts 是房间表的汇总，用于 /metrics
type Counts struct {
	Rooms       int `json:"active_rooms"`
	Publishers  int `json:"publishers"`
	Controllers int `json:"controllers"`
	Viewers     int `json:"viewers"`
}

// Registry 维护 roomID -> Room。本身不加锁，由 Router 串行化所有访问
type Registry struct {
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// GetOrCreate 返回已有房间，不存在时创建
func (g *Registry) GetOrCreate(id string) *Room {
	if room, ok := g.rooms[id]; ok {
		return room
	}
	room := NewRoom(id)
	g.rooms[id] = room
	return room
}

func (g *Registry) Get(id string) (*Room, bool) {
	room, ok := g.rooms[id]
	return room, ok
}

// CleanupIfEmpty 在房间为空时删除它，返回是否删除。对不存在的房间无操作
func (g *Registry) CleanupIfEmpty(id string) bool {
	room, ok := g.rooms[id]
	if !ok || !room.Empty() {
		return false
	}
	delete(g.rooms, id)
	return true
}

func (g *Registry) Len() int {
	return len(g.rooms)
}

func (g *Registry) Counts() Counts {
	c := Counts{Rooms: len(g.rooms)}
	for _, room := range g.rooms {
		if room.Publisher != nil {
			c.Publishers++
		}
		if room.Controller != nil {
			c.Controllers++
		}
		c.Viewers += len(room.Viewers)
	}
	return c
}
