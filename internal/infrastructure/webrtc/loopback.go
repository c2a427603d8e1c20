package webrtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"livegrid/internal/core/domain"
	"livegrid/internal/core/services"
	"livegrid/internal/selftest"
	"livegrid/pkg/optimize"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"go.uber.org/zap"
)

// rtpBuffers holds MTU-sized read buffers shared by subscriptions.
var rtpBuffers = optimize.NewBytePool(1500)

// LoopbackConfig shapes the synthetic video published by producers.
type LoopbackConfig struct {
	FrameSize int // bytes per frame
	FrameRate int // frames per second
}

func DefaultLoopbackConfig() LoopbackConfig {
	return LoopbackConfig{
		FrameSize: 1200,
		FrameRate: 30,
	}
}

// LoopbackTransport is an in-process stand-in for the media server. It
// enforces the grants carried by credentials and forwards each room's
// published track to subscribers over real peer connections bound to the
// loopback interface.
type LoopbackTransport struct {
	apiKey    string
	apiSecret []byte
	config    LoopbackConfig
	api       *webrtc.API

	rooms map[string]*loopbackRoom
	mu    sync.Mutex

	logger *zap.SugaredLogger
}

var _ selftest.Transport = (*LoopbackTransport)(nil)

func NewLoopbackTransport(apiKey, apiSecret string, config LoopbackConfig, logger *zap.SugaredLogger) (*LoopbackTransport, error) {
	if config.FrameSize <= 0 || config.FrameRate <= 0 {
		return nil, fmt.Errorf("loopback: frame size and rate must be > 0")
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("loopback: register codecs: %w", err)
	}

	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetIncludeLoopbackCandidate(true)
	settingEngine.SetNetworkTypes([]webrtc.NetworkType{webrtc.NetworkTypeUDP4})

	return &LoopbackTransport{
		apiKey:    apiKey,
		apiSecret: []byte(apiSecret),
		config:    config,
		api:       webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine), webrtc.WithSettingEngine(settingEngine)),
		rooms:     make(map[string]*loopbackRoom),
		logger:    logger,
	}, nil
}

// Connect admits the holder of token. When roomURL has a path, it names the
// room and must match the credential's room.
func (t *LoopbackTransport) Connect(ctx context.Context, roomURL string, token domain.Credential) (selftest.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	grant, err := services.DecodeGrant(token, t.apiKey, t.apiSecret, time.Now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConnectRejected, err)
	}

	if roomURL != "" {
		u, err := url.Parse(roomURL)
		if err != nil {
			return nil, fmt.Errorf("%w: bad url: %v", domain.ErrConnectRejected, err)
		}
		if name := strings.Trim(u.Path, "/"); name != "" && name != grant.Room {
			return nil, fmt.Errorf("%w: credential is for room %q, not %q", domain.ErrConnectRejected, grant.Room, name)
		}
	}

	p, err := t.joinRoom(grant)
	if err != nil {
		return nil, err
	}

	t.logger.Infow("participant connected",
		"room", grant.Room,
		"identity", grant.Identity,
		"role", grant.Role,
	)
	return p, nil
}

// RoomCount reports rooms with at least one participant.
func (t *LoopbackTransport) RoomCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rooms)
}

// joinRoom finds or creates the grant's room and joins it under t.mu, so a
// concurrent releaseRoom cannot drop the room in between.
func (t *LoopbackTransport) joinRoom(grant domain.AccessGrant) (*loopbackParticipant, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[grant.Room]
	if !ok {
		room = newLoopbackRoom(grant.Room)
		t.rooms[grant.Room] = room
	}

	p := newLoopbackParticipant(t, room, grant)
	if err := room.join(p); err != nil {
		p.cancel()
		if room.empty() {
			delete(t.rooms, grant.Room)
		}
		return nil, err
	}
	return p, nil
}

func (t *LoopbackTransport) releaseRoom(room *loopbackRoom) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if room.empty() && t.rooms[room.name] == room {
		delete(t.rooms, room.name)
	}
}

// createPeerConnection creates a peer connection on the loopback API.
func (t *LoopbackTransport) createPeerConnection() (*webrtc.PeerConnection, error) {
	return t.api.NewPeerConnection(webrtc.Configuration{
		SDPSemantics: webrtc.SDPSemanticsUnifiedPlan,
	})
}

type loopbackRoom struct {
	name string

	mu           sync.Mutex
	participants map[string]*loopbackParticipant
	track        *webrtc.TrackLocalStaticSample
	published    chan struct{} // closed while a track is published
}

func newLoopbackRoom(name string) *loopbackRoom {
	return &loopbackRoom{
		name:         name,
		participants: make(map[string]*loopbackParticipant),
		published:    make(chan struct{}),
	}
}

func (r *loopbackRoom) join(p *loopbackParticipant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.participants[p.grant.Identity]; exists {
		return fmt.Errorf("%w: identity %q already connected", domain.ErrConnectRejected, p.grant.Identity)
	}
	r.participants[p.grant.Identity] = p
	return nil
}

func (r *loopbackRoom) leave(p *loopbackParticipant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.participants[p.grant.Identity] == p {
		delete(r.participants, p.grant.Identity)
	}
}

func (r *loopbackRoom) empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants) == 0
}

func (r *loopbackRoom) publish(track *webrtc.TrackLocalStaticSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.track != nil {
		return fmt.Errorf("%w: room %q already has a video track", domain.ErrConnectRejected, r.name)
	}
	r.track = track
	close(r.published)
	return nil
}

func (r *loopbackRoom) unpublish(track *webrtc.TrackLocalStaticSample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.track == track {
		r.track = nil
		r.published = make(chan struct{})
	}
}

// currentTrack returns the published track, or a channel closed on publish.
func (r *loopbackRoom) currentTrack() (*webrtc.TrackLocalStaticSample, <-chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.track, r.published
}

type loopbackParticipant struct {
	transport *LoopbackTransport
	room      *loopbackRoom
	grant     domain.AccessGrant

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	publication   *webrtc.TrackLocalStaticSample
	subscriptions []*subscription
	lastBytes     uint64
	lastSampleAt  time.Time
	closed        bool
}

func newLoopbackParticipant(t *LoopbackTransport, room *loopbackRoom, grant domain.AccessGrant) *loopbackParticipant {
	ctx, cancel := context.WithCancel(context.Background())
	return &loopbackParticipant{
		transport:    t,
		room:         room,
		grant:        grant,
		ctx:          ctx,
		cancel:       cancel,
		lastSampleAt: time.Now(),
	}
}

// PublishVideo publishes a synthetic VP8 track. Requires canPublish.
func (p *loopbackParticipant) PublishVideo(ctx context.Context) error {
	if !p.grant.CanPublish {
		return fmt.Errorf("%w: %s may not publish", domain.ErrConnectRejected, p.grant.Identity)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("participant disconnected")
	}
	if p.publication != nil {
		return nil
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		"video",
		p.grant.Identity,
	)
	if err != nil {
		return fmt.Errorf("create video track: %w", err)
	}
	if err := p.room.publish(track); err != nil {
		return err
	}
	p.publication = track

	go p.writeFrames(track)
	return nil
}

func (p *loopbackParticipant) writeFrames(track *webrtc.TrackLocalStaticSample) {
	cfg := p.transport.config
	interval := time.Second / time.Duration(cfg.FrameRate)
	frame := make([]byte, cfg.FrameSize)
	for i := range frame {
		frame[i] = byte(i)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			err := track.WriteSample(media.Sample{Data: frame, Duration: interval})
			if err != nil && !errors.Is(err, io.ErrClosedPipe) {
				p.transport.logger.Debugw("failed to write video sample",
					"identity", p.grant.Identity,
					"error", err,
				)
			}
		}
	}
}

// WaitForTrack subscribes to the room's video track and returns once the
// first RTP packet has arrived. Requires canSubscribe.
func (p *loopbackParticipant) WaitForTrack(ctx context.Context) error {
	if !p.grant.CanSubscribe {
		return fmt.Errorf("%w: %s may not subscribe", domain.ErrConnectRejected, p.grant.Identity)
	}

	p.mu.Lock()
	var sub *subscription
	if len(p.subscriptions) > 0 {
		sub = p.subscriptions[0]
	}
	p.mu.Unlock()

	if sub == nil {
		var track *webrtc.TrackLocalStaticSample
		for track == nil {
			var published <-chan struct{}
			track, published = p.room.currentTrack()
			if track != nil {
				break
			}
			select {
			case <-published:
			case <-ctx.Done():
				return ctx.Err()
			case <-p.ctx.Done():
				return errors.New("participant disconnected")
			}
		}

		var err error
		sub, err = p.subscribe(ctx, track)
		if err != nil {
			return err
		}
	}

	select {
	case <-sub.firstPacket:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return errors.New("participant disconnected")
	}
}

func (p *loopbackParticipant) subscribe(ctx context.Context, track *webrtc.TrackLocalStaticSample) (*subscription, error) {
	sub, err := newSubscription(ctx, p.transport, track, p.grant.Identity)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		sub.close()
		return nil, errors.New("participant disconnected")
	}
	p.subscriptions = append(p.subscriptions, sub)
	return sub, nil
}

// BitrateSample returns bits/s received since the previous sample.
func (p *loopbackParticipant) BitrateSample() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	var total uint64
	for _, sub := range p.subscriptions {
		total += sub.bytes.Load()
	}

	now := time.Now()
	elapsed := now.Sub(p.lastSampleAt).Seconds()
	delta := total - p.lastBytes
	p.lastBytes = total
	p.lastSampleAt = now

	if elapsed <= 0 {
		return 0
	}
	return int64(float64(delta*8) / elapsed)
}

func (p *loopbackParticipant) Disconnect() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	subs := p.subscriptions
	p.subscriptions = nil
	publication := p.publication
	p.publication = nil
	p.mu.Unlock()

	p.cancel()
	if publication != nil {
		p.room.unpublish(publication)
	}

	var errs []error
	for _, sub := range subs {
		if err := sub.close(); err != nil {
			errs = append(errs, err)
		}
	}

	p.room.leave(p)
	p.transport.releaseRoom(p.room)

	p.transport.logger.Infow("participant disconnected",
		"room", p.room.name,
		"identity", p.grant.Identity,
	)
	return errors.Join(errs...)
}

// subscription is one forwarded track: the room side sends, the
// participant side receives and counts bytes.
type subscription struct {
	roomPC      *webrtc.PeerConnection
	pc          *webrtc.PeerConnection
	bytes       atomic.Uint64
	packets     atomic.Uint64
	firstPacket chan struct{}
	once        sync.Once
	logger      *zap.SugaredLogger
}

func newSubscription(ctx context.Context, t *LoopbackTransport, track *webrtc.TrackLocalStaticSample, identity string) (*subscription, error) {
	roomPC, err := t.createPeerConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}
	pc, err := t.createPeerConnection()
	if err != nil {
		roomPC.Close()
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	sub := &subscription{
		roomPC:      roomPC,
		pc:          pc,
		firstPacket: make(chan struct{}),
		logger:      t.logger.With("identity", identity),
	}

	sender, err := roomPC.AddTrack(track)
	if err != nil {
		sub.close()
		return nil, fmt.Errorf("failed to add track: %w", err)
	}
	go sub.drainRTCP(sender)

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		sub.close()
		return nil, fmt.Errorf("failed to add transceiver: %w", err)
	}

	pc.OnTrack(sub.handleTrack)
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		sub.logger.Debugw("subscriber connection state changed", "connection_state", state)
	})

	if err := negotiate(ctx, pc, roomPC); err != nil {
		sub.close()
		return nil, err
	}
	return sub, nil
}

// negotiate runs a complete offer/answer exchange between two local peers
// without trickle ICE.
func negotiate(ctx context.Context, offerer, answerer *webrtc.PeerConnection) error {
	offer, err := offerer.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(offerer)
	if err := offerer.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local offer: %w", err)
	}
	if err := waitGathering(ctx, gathered); err != nil {
		return err
	}

	if err := answerer.SetRemoteDescription(*offerer.LocalDescription()); err != nil {
		return fmt.Errorf("set remote offer: %w", err)
	}
	answer, err := answerer.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	gathered = webrtc.GatheringCompletePromise(answerer)
	if err := answerer.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local answer: %w", err)
	}
	if err := waitGathering(ctx, gathered); err != nil {
		return err
	}

	if err := offerer.SetRemoteDescription(*answerer.LocalDescription()); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	return nil
}

func waitGathering(ctx context.Context, gathered <-chan struct{}) error {
	select {
	case <-gathered:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("ICE gathering: %w", ctx.Err())
	}
}

func (s *subscription) handleTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	s.logger.Infow("subscribed to track",
		"track_id", track.ID(),
		"codec", track.Codec().MimeType,
	)

	// Ask for a keyframe as a real subscriber would.
	if err := s.pc.WriteRTCP([]rtcp.Packet{
		&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())},
	}); err != nil {
		s.logger.Debugw("failed to send PLI", "error", err)
	}

	buf := rtpBuffers.Get()
	defer rtpBuffers.Put(buf)

	packet := &rtp.Packet{}
	for {
		n, _, err := track.Read(buf)
		if err != nil {
			return
		}
		if err := packet.Unmarshal(buf[:n]); err != nil {
			continue
		}
		s.bytes.Add(uint64(n))
		s.packets.Add(1)
		s.once.Do(func() { close(s.firstPacket) })
	}
}

// drainRTCP reads RTCP sent back by the subscriber so interceptors run.
func (s *subscription) drainRTCP(sender *webrtc.RTPSender) {
	for {
		packets, _, err := sender.ReadRTCP()
		if err != nil {
			return
		}
		for _, pkt := range packets {
			if _, ok := pkt.(*rtcp.PictureLossIndication); ok {
				s.logger.Debugw("keyframe requested by subscriber")
			}
		}
	}
}

func (s *subscription) close() error {
	return errors.Join(s.pc.Close(), s.roomPC.Close())
}
