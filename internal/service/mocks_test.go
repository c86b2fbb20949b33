package service

import (
	"context"
	"sync"
	"time"

	"hubrelay/internal/models"
	"hubrelay/pkg/classifier"
	"hubrelay/pkg/transport"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// Mock connection store

type mockConnStore struct {
	mu      sync.Mutex
	conns   map[string]*models.Connection
	getErr  error
	touched map[string]time.Time
}

func newMockConnStore(conns ...*models.Connection) *mockConnStore {
	s := &mockConnStore{
		conns:   make(map[string]*models.Connection),
		touched: make(map[string]time.Time),
	}
	for _, c := range conns {
		cp := *c
		s.conns[c.ChannelID] = &cp
	}
	return s
}

func (s *mockConnStore) GetConnection(ctx context.Context, channelID string) (*models.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	conn, ok := s.conns[channelID]
	if !ok {
		return nil, nil
	}
	cp := *conn
	return &cp, nil
}

func (s *mockConnStore) GetHubConnections(ctx context.Context, hubID string) ([]models.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	var out []models.Connection
	for _, conn := range s.conns {
		if conn.HubID == hubID {
			out = append(out, *conn)
		}
	}
	return out, nil
}

func (s *mockConnStore) SaveConnection(ctx context.Context, conn *models.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *conn
	s.conns[conn.ChannelID] = &cp
	return nil
}

func (s *mockConnStore) SetConnected(ctx context.Context, channelID string, connected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn, ok := s.conns[channelID]; ok {
		conn.Connected = connected
	}
	return nil
}

func (s *mockConnStore) TouchConnection(ctx context.Context, channelID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched[channelID] = at
	return nil
}

func (s *mockConnStore) DeleteConnection(ctx context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, channelID)
	return nil
}

// Mock connection cache

type mockConnCache struct {
	mu       sync.Mutex
	conns    map[string]*models.Connection
	hubLists map[string][]models.Connection
	getErr   error
	hits     int
}

func newMockConnCache() *mockConnCache {
	return &mockConnCache{
		conns:    make(map[string]*models.Connection),
		hubLists: make(map[string][]models.Connection),
	}
}

func (c *mockConnCache) GetConnection(ctx context.Context, channelID string) (*models.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	conn, ok := c.conns[channelID]
	if !ok {
		return nil, nil
	}
	c.hits++
	cp := *conn
	return &cp, nil
}

func (c *mockConnCache) SetConnection(ctx context.Context, conn *models.Connection) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *conn
	c.conns[conn.ChannelID] = &cp
	return nil
}

func (c *mockConnCache) DeleteConnection(ctx context.Context, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.conns, channelID)
	return nil
}

func (c *mockConnCache) GetHubConnections(ctx context.Context, hubID string) ([]models.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	conns, ok := c.hubLists[hubID]
	if !ok {
		return nil, nil
	}
	c.hits++
	return conns, nil
}

func (c *mockConnCache) SetHubConnections(ctx context.Context, hubID string, conns []models.Connection) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hubLists[hubID] = conns
	return nil
}

func (c *mockConnCache) InvalidateHubConnections(ctx context.Context, hubID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.hubLists, hubID)
	return nil
}

// Mock moderation store

type mockModStore struct {
	mu          sync.Mutex
	infractions map[string]*models.Infraction // keyed by hub|target|type
	getErr      error
	expired     []string
	added       []*models.Infraction
}

func newMockModStore() *mockModStore {
	return &mockModStore{infractions: make(map[string]*models.Infraction)}
}

func modKey(hubID, targetID string, targetType models.InfractionTarget) string {
	return hubID + "|" + targetID + "|" + string(targetType)
}

func (s *mockModStore) put(inf *models.Infraction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infractions[modKey(inf.HubID, inf.TargetID, inf.TargetType)] = inf
}

func (s *mockModStore) GetActiveInfraction(ctx context.Context, hubID, targetID string, targetType models.InfractionTarget) (*models.Infraction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	inf, ok := s.infractions[modKey(hubID, targetID, targetType)]
	if !ok || inf.Status != models.InfractionActive {
		return nil, nil
	}
	return inf, nil
}

func (s *mockModStore) ExpireInfraction(ctx context.Context, infractionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired = append(s.expired, infractionID)
	for _, inf := range s.infractions {
		if inf.ID == infractionID {
			inf.Status = models.InfractionExpired
		}
	}
	return nil
}

func (s *mockModStore) AddInfraction(ctx context.Context, inf *models.Infraction) error {
	s.mu.Lock()
	s.added = append(s.added, inf)
	s.mu.Unlock()
	s.put(inf)
	return nil
}

// Mock classifier

type mockClassifier struct {
	predictions []classifier.Prediction
	err         error
	calls       int
}

func (m *mockClassifier) Classify(ctx context.Context, imageURL string) ([]classifier.Prediction, error) {
	m.calls++
	return m.predictions, m.err
}

// Mock alerter

type mockAlerter struct {
	mu         sync.Mutex
	ruleAlerts []string // rule names
	nsfwAlerts []string // image URLs
}

func (m *mockAlerter) RuleAlert(ctx context.Context, hub *models.Hub, rule *models.BlockRule, msg *models.OriginalMessage, excerpt string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ruleAlerts = append(m.ruleAlerts, rule.Name)
}

func (m *mockAlerter) NSFWAlert(ctx context.Context, hub *models.Hub, msg *models.OriginalMessage, imageURL string, score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nsfwAlerts = append(m.nsfwAlerts, imageURL)
}

// Mock hub store

type mockHubStore struct {
	hubs   map[string]*models.Hub
	getErr error
}

func newMockHubStore(hubs ...*models.Hub) *mockHubStore {
	s := &mockHubStore{hubs: make(map[string]*models.Hub)}
	for _, h := range hubs {
		s.hubs[h.ID] = h
	}
	return s
}

func (s *mockHubStore) GetHub(ctx context.Context, hubID string) (*models.Hub, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.hubs[hubID], nil
}

// Mock transport client

type sentPayload struct {
	WebhookURL string
	ThreadID   string
	MessageID  string
	Payload    *transport.Payload
}

type mockTransport struct {
	mu      sync.Mutex
	nextID  int
	sendErr map[string]error // keyed by webhook URL
	editErr map[string]error // keyed by message id
	sent    []sentPayload
	edited  []sentPayload
	deleted []sentPayload
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		sendErr: make(map[string]error),
		editErr: make(map[string]error),
	}
}

func (m *mockTransport) Send(ctx context.Context, webhookURL, threadID string, p *transport.Payload) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.sendErr[webhookURL]; err != nil {
		return "", err
	}
	m.nextID++
	id := "remote-" + string(rune('a'+m.nextID-1))
	m.sent = append(m.sent, sentPayload{WebhookURL: webhookURL, ThreadID: threadID, MessageID: id, Payload: p})
	return id, nil
}

func (m *mockTransport) Edit(ctx context.Context, webhookURL, threadID, messageID string, p *transport.Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.editErr[messageID]; err != nil {
		return err
	}
	m.edited = append(m.edited, sentPayload{WebhookURL: webhookURL, ThreadID: threadID, MessageID: messageID, Payload: p})
	return nil
}

func (m *mockTransport) Delete(ctx context.Context, webhookURL, threadID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.editErr[messageID]; err != nil {
		return err
	}
	m.deleted = append(m.deleted, sentPayload{WebhookURL: webhookURL, ThreadID: threadID, MessageID: messageID})
	return nil
}

func (m *mockTransport) sentTo(webhookURL string) []sentPayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sentPayload
	for _, s := range m.sent {
		if s.WebhookURL == webhookURL {
			out = append(out, s)
		}
	}
	return out
}

// Mock notifier

type notice struct {
	ChannelID string
	Content   string
	Embed     *transport.Embed
}

type mockNotifier struct {
	mu       sync.Mutex
	embedErr error
	notices  []notice
	embeds   []notice
}

func (m *mockNotifier) ChannelNotice(ctx context.Context, channelID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, notice{ChannelID: channelID, Content: content})
	return nil
}

func (m *mockNotifier) EmbedNotice(ctx context.Context, channelID string, embed *transport.Embed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.embedErr != nil {
		return m.embedErr
	}
	m.embeds = append(m.embeds, notice{ChannelID: channelID, Content: embed.AuthorName, Embed: embed})
	return nil
}

// Mock message database

type mockMessageDB struct {
	mu         sync.Mutex
	originals  map[string]*models.OriginalMessage
	broadcasts map[string][]models.Broadcast
	byRemote   map[string]string
	saveErr    error
}

func newMockMessageDB() *mockMessageDB {
	return &mockMessageDB{
		originals:  make(map[string]*models.OriginalMessage),
		broadcasts: make(map[string][]models.Broadcast),
		byRemote:   make(map[string]string),
	}
}

func (db *mockMessageDB) SaveOriginal(ctx context.Context, msg *models.OriginalMessage) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.saveErr != nil {
		return db.saveErr
	}
	cp := *msg
	db.originals[msg.ID] = &cp
	return nil
}

func (db *mockMessageDB) GetOriginal(ctx context.Context, id string) (*models.OriginalMessage, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	msg, ok := db.originals[id]
	if !ok {
		return nil, nil
	}
	cp := *msg
	return &cp, nil
}

func (db *mockMessageDB) UpdateReactions(ctx context.Context, id string, reactions models.ReactionTally) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if msg, ok := db.originals[id]; ok {
		msg.Reactions = reactions
	}
	return nil
}

func (db *mockMessageDB) UpdateContent(ctx context.Context, id, content string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if msg, ok := db.originals[id]; ok {
		msg.Content = content
	}
	return nil
}

func (db *mockMessageDB) SaveBroadcast(ctx context.Context, b *models.Broadcast) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, existing := range db.broadcasts[b.OriginalID] {
		if existing.ChannelID == b.ChannelID {
			// one copy per (original, channel)
			return nil
		}
	}
	db.broadcasts[b.OriginalID] = append(db.broadcasts[b.OriginalID], *b)
	db.byRemote[b.MessageID] = b.OriginalID
	return nil
}

func (db *mockMessageDB) GetBroadcasts(ctx context.Context, originalID string) ([]models.Broadcast, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]models.Broadcast(nil), db.broadcasts[originalID]...), nil
}

func (db *mockMessageDB) GetOriginalByBroadcastID(ctx context.Context, remoteMsgID string) (*models.OriginalMessage, error) {
	db.mu.Lock()
	originalID, ok := db.byRemote[remoteMsgID]
	db.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return db.GetOriginal(ctx, originalID)
}

func (db *mockMessageDB) DeleteOriginal(ctx context.Context, originalID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.originals, originalID)
	for _, b := range db.broadcasts[originalID] {
		delete(db.byRemote, b.MessageID)
	}
	delete(db.broadcasts, originalID)
	return nil
}

// Mock message cache

type mockMessageCache struct {
	mu         sync.Mutex
	disabled   bool // when true every read misses
	originals  map[string]*models.OriginalMessage
	broadcasts map[string][]models.Broadcast
	index      map[string]string
}

func newMockMessageCache() *mockMessageCache {
	return &mockMessageCache{
		originals:  make(map[string]*models.OriginalMessage),
		broadcasts: make(map[string][]models.Broadcast),
		index:      make(map[string]string),
	}
}

func (c *mockMessageCache) SetOriginal(ctx context.Context, msg *models.OriginalMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *msg
	c.originals[msg.ID] = &cp
	return nil
}

func (c *mockMessageCache) GetOriginal(ctx context.Context, id string) (*models.OriginalMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled {
		return nil, nil
	}
	msg, ok := c.originals[id]
	if !ok {
		return nil, nil
	}
	cp := *msg
	return &cp, nil
}

func (c *mockMessageCache) DeleteOriginal(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.originals, id)
	return nil
}

func (c *mockMessageCache) SetBroadcasts(ctx context.Context, originalID string, broadcasts []models.Broadcast) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcasts[originalID] = broadcasts
	return nil
}

func (c *mockMessageCache) GetBroadcasts(ctx context.Context, originalID string) ([]models.Broadcast, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled {
		return nil, nil
	}
	return c.broadcasts[originalID], nil
}

func (c *mockMessageCache) InvalidateBroadcasts(ctx context.Context, originalID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.broadcasts, originalID)
	return nil
}

func (c *mockMessageCache) SetBroadcastIndex(ctx context.Context, remoteMsgID, originalID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index[remoteMsgID] = originalID
	return nil
}

func (c *mockMessageCache) GetBroadcastIndex(ctx context.Context, remoteMsgID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled {
		return "", nil
	}
	return c.index[remoteMsgID], nil
}

func (c *mockMessageCache) DeleteBroadcastIndex(ctx context.Context, remoteMsgIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range remoteMsgIDs {
		delete(c.index, id)
	}
	return nil
}

// Mock lock cache

type mockLockCache struct {
	mu     sync.Mutex
	locks  map[string]bool
	getErr error
}

func newMockLockCache() *mockLockCache {
	return &mockLockCache{locks: make(map[string]bool)}
}

func (c *mockLockCache) AcquireDeleteLock(ctx context.Context, originalID string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return false, c.getErr
	}
	if c.locks[originalID] {
		return false, nil
	}
	c.locks[originalID] = true
	return true, nil
}

func (c *mockLockCache) ReleaseDeleteLock(ctx context.Context, originalID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, originalID)
	return nil
}

func (c *mockLockCache) IsDeleteLocked(ctx context.Context, originalID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return false, c.getErr
	}
	return c.locks[originalID], nil
}
