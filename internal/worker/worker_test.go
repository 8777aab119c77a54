package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartfile-qa/internal/filestore"
	"smartfile-qa/internal/model"
	"smartfile-qa/internal/platform/mailer"
)

type ackRecord struct {
	acked   bool
	nacked  bool
	requeue bool
}

type fakeAcknowledger struct {
	rec *ackRecord
}

func (f fakeAcknowledger) Ack(uint64, bool) error {
	f.rec.acked = true
	return nil
}

func (f fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.rec.nacked = true
	f.rec.requeue = requeue
	return nil
}

func (f fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	f.rec.nacked = true
	f.rec.requeue = requeue
	return nil
}

func delivery(body []byte, redelivered bool) (amqp.Delivery, *ackRecord) {
	rec := &ackRecord{}
	return amqp.Delivery{Acknowledger: fakeAcknowledger{rec: rec}, Body: body, Redelivered: redelivered}, rec
}

func TestConsumerAckNackPolicy(t *testing.T) {
	transient := errors.New("db down")
	cases := []struct {
		name        string
		err         error
		redelivered bool
		wantAck     bool
		wantRequeue bool
	}{
		{name: "success", wantAck: true},
		{name: "transient first try", err: transient, wantRequeue: true},
		{name: "transient redelivered", err: transient, redelivered: true},
		{name: "permanent", err: ErrPermanent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewConsumer(nil, "q", "test", func(context.Context, []byte) error { return tc.err })
			d, rec := delivery([]byte("{}"), tc.redelivered)
			c.process(context.Background(), d)
			assert.Equal(t, tc.wantAck, rec.acked)
			assert.Equal(t, !tc.wantAck, rec.nacked)
			assert.Equal(t, tc.wantRequeue, rec.requeue)
		})
	}
}

func TestConsumerRunStopsWhenChannelCloses(t *testing.T) {
	var got [][]byte
	c := NewConsumer(nil, "q", "test", func(_ context.Context, body []byte) error {
		got = append(got, body)
		return nil
	})
	deliveries := make(chan amqp.Delivery, 2)
	d1, _ := delivery([]byte("a"), false)
	d2, _ := delivery([]byte("b"), false)
	deliveries <- d1
	deliveries <- d2
	close(deliveries)

	c.run(context.Background(), deliveries)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, got)
}

type fakeConversationWriter struct {
	created []*model.Conversation
	err     error
}

func (f *fakeConversationWriter) Create(_ context.Context, c *model.Conversation) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, c)
	return nil
}

type fakeInvalidator struct {
	deleted []string
}

func (f *fakeInvalidator) DeleteHistory(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func TestConversationPersisterWritesAndInvalidates(t *testing.T) {
	repo := &fakeConversationWriter{}
	history := &fakeInvalidator{}
	p := NewConversationPersister(repo, history)

	job := ConversationJob{
		SessionRowID:   3,
		SessionKey:     "abc",
		Prompt:         "what is in the file?",
		Answer:         "a table",
		ResponseTimeMS: 420,
		HasFile:        true,
		FileName:       "data.csv",
		CreatedAt:      time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	body, err := json.Marshal(job)
	require.NoError(t, err)

	require.NoError(t, p.Handle(context.Background(), body))
	require.Len(t, repo.created, 1)
	row := repo.created[0]
	assert.Equal(t, uint(3), row.SessionID)
	assert.Equal(t, "a table", row.Answer)
	assert.True(t, row.HasFile)
	assert.Equal(t, "data.csv", row.FileName)
	assert.Equal(t, []string{"abc"}, history.deleted)
}

func TestConversationPersisterRejectsGarbage(t *testing.T) {
	p := NewConversationPersister(&fakeConversationWriter{}, nil)

	err := p.Handle(context.Background(), []byte("not json"))
	assert.ErrorIs(t, err, ErrPermanent)

	err = p.Handle(context.Background(), []byte(`{"session_key":"abc"}`))
	assert.ErrorIs(t, err, ErrPermanent)
}

func TestConversationPersisterRepoErrorIsTransient(t *testing.T) {
	history := &fakeInvalidator{}
	p := NewConversationPersister(&fakeConversationWriter{err: errors.New("boom")}, history)

	err := p.Handle(context.Background(), []byte(`{"session_row_id":1,"session_key":"abc"}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPermanent)
	assert.Empty(t, history.deleted)
}

type fakeReports struct {
	sessions []string
}

func (f *fakeReports) BuildPDF(_ context.Context, sessionKey string) ([]byte, error) {
	f.sessions = append(f.sessions, sessionKey)
	return []byte("%PDF-1.3"), nil
}

type fakeMailSender struct {
	sent []mailer.Email
	err  error
}

func (f *fakeMailSender) Send(_ context.Context, email mailer.Email) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, email)
	return nil
}

func TestReportMailerSendsAttachment(t *testing.T) {
	reports := &fakeReports{}
	sender := &fakeMailSender{}
	m := NewReportMailer(reports, sender, "smartfile-qa")

	require.NoError(t, m.Handle(context.Background(), []byte(`{"session_key":"abc","email":"a@example.com"}`)))
	assert.Equal(t, []string{"abc"}, reports.sessions)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "a@example.com", sender.sent[0].To)
	require.Len(t, sender.sent[0].Attachments, 1)
	assert.Equal(t, []byte("%PDF-1.3"), sender.sent[0].Attachments[0].Data)
}

func TestReportMailerPermanentFailures(t *testing.T) {
	m := NewReportMailer(&fakeReports{}, &fakeMailSender{}, "x")
	assert.ErrorIs(t, m.Handle(context.Background(), []byte(`{"session_key":"abc","email":"nope"}`)), ErrPermanent)

	m = NewReportMailer(&fakeReports{}, &fakeMailSender{err: mailer.ErrNotConfigured}, "x")
	assert.ErrorIs(t, m.Handle(context.Background(), []byte(`{"session_key":"abc","email":"a@example.com"}`)), ErrPermanent)
}

type fakePurger struct {
	mu    sync.Mutex
	calls []int
}

func (f *fakePurger) PurgeOlderThan(_ context.Context, days int) (*filestore.PurgeReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, days)
	return &filestore.PurgeReport{Removed: []string{"old"}, Failed: map[string]error{}}, nil
}

func (f *fakePurger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestPurgeWorkerRunsImmediatelyAndOnTick(t *testing.T) {
	purger := &fakePurger{}
	w := NewPurgeWorker(purger, 7, 10*time.Millisecond)
	w.Start(context.Background())
	defer w.Close()

	assert.Eventually(t, func() bool { return purger.count() >= 2 }, time.Second, 5*time.Millisecond)
	purger.mu.Lock()
	first := purger.calls[0]
	purger.mu.Unlock()
	assert.Equal(t, 7, first)
}

func TestPurgeWorkerDisabledWithoutRetention(t *testing.T) {
	purger := &fakePurger{}
	w := NewPurgeWorker(purger, 0, time.Millisecond)
	w.Start(context.Background())
	w.Close()
	assert.Zero(t, purger.count())
}
