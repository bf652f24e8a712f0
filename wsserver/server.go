package wsserver

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/cjjhhhhh/gnss-ins-eskf/navtypes"
)

// Server exposes the fused navigation state over a "/ws" websocket
// endpoint for live dashboards, mirroring the teacher's own
// config-serving + static-frontend HTTP server.
type Server struct {
	Hub *Hub
}

// NewServer creates a Server with a fresh Hub.
func NewServer() *Server {
	return &Server{Hub: NewHub()}
}

// Start runs the hub's broadcast loop and serves HTTP on port, blocking
// until the server errors.
func (s *Server) Start(port int, staticDir string) error {
	go s.Hub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(s.Hub, w, r)
	})
	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}

	addr := fmt.Sprintf(":%d", port)
	log.Printf("wsserver: listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

// PoseMessage is the JSON shape of one pose update broadcast to
// subscribers.
type PoseMessage struct {
	TimeSec    float64 `json:"t"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	HeadingDeg float64 `json:"heading_deg"`
}

// BroadcastPose marshals and broadcasts one pose update.
func (s *Server) BroadcastPose(p NavPose) {
	msg := PoseMessage{TimeSec: p.TimeSec, X: p.Pos.X, Y: p.Pos.Y, Z: p.Pos.Z, HeadingDeg: p.HeadingDeg}
	b, err := json.Marshal(msg)
	if err != nil {
		log.Printf("wsserver: marshal pose: %v", err)
		return
	}
	s.Hub.Broadcast(b)
}

// NavPose is the minimal pose shape callers hand to BroadcastPose, kept
// independent of package eskf so wsserver doesn't need to import the
// filter just to broadcast its output.
type NavPose struct {
	TimeSec    float64
	Pos        navtypes.Vec3
	HeadingDeg float64
}
