package service

import (
	"context"
	"sync"
	"time"

	"backend/internal/events"
	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// In-memory fakes backing the service tests. They mirror the repository
// contracts, including the version compare-and-swap on application updates.

type fakeAppRepo struct {
	mu      sync.Mutex
	apps    map[uuid.UUID]model.Application
	history []model.StageHistoryEntry
	seq     int
}

func newFakeAppRepo() *fakeAppRepo {
	return &fakeAppRepo{apps: make(map[uuid.UUID]model.Application)}
}

func (f *fakeAppRepo) Create(_ context.Context, app *model.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	app.CreatedAt = time.Now()
	f.apps[app.ID] = *app
	return nil
}

func (f *fakeAppRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &app, nil
}

func (f *fakeAppRepo) FindByIDWithHistory(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	app, err := f.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.history {
		if h.ApplicationID == id {
			app.StageHistory = append(app.StageHistory, h)
		}
	}
	return app, nil
}

func (f *fakeAppRepo) List(_ context.Context, filter repository.ApplicationFilter) ([]model.Application, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []model.Application
	for _, app := range f.apps {
		if filter.Stage > 0 && app.CurrentStage != filter.Stage {
			continue
		}
		if filter.Status != "" && app.CurrentStatus != filter.Status {
			continue
		}
		if filter.Priority != "" && app.Priority != filter.Priority {
			continue
		}
		if filter.PartnerID != nil && (app.PartnerID == nil || *app.PartnerID != *filter.PartnerID) {
			continue
		}
		matched = append(matched, app)
	}
	return matched, int64(len(matched)), nil
}

func (f *fakeAppRepo) Update(_ context.Context, app *model.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.apps[app.ID]
	if !ok || stored.Version != app.Version {
		return repository.ErrVersionConflict
	}
	app.Version++
	f.apps[app.ID] = *app
	return nil
}

func (f *fakeAppRepo) AppendHistory(_ context.Context, entry *model.StageHistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	f.seq++
	entry.CreatedAt = time.Unix(int64(f.seq), 0)
	f.history = append(f.history, *entry)
	return nil
}

func (f *fakeAppRepo) historyFor(id uuid.UUID) []model.StageHistoryEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []model.StageHistoryEntry
	for _, h := range f.history {
		if h.ApplicationID == id {
			entries = append(entries, h)
		}
	}
	return entries
}

type fakeDocRepo struct {
	mu   sync.Mutex
	docs []model.Document
}

func (f *fakeDocRepo) Create(_ context.Context, doc *model.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.CreatedAt = time.Now()
	f.docs = append(f.docs, *doc)
	return nil
}

func (f *fakeDocRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.ID == id {
			doc := d
			return &doc, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeDocRepo) ListByApplication(_ context.Context, applicationID uuid.UUID) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var docs []model.Document
	for _, d := range f.docs {
		if d.ApplicationID == applicationID {
			docs = append(docs, d)
		}
	}
	return docs, nil
}

func (f *fakeDocRepo) LatestVersion(_ context.Context, applicationID uuid.UUID, docType string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	version := 0
	for _, d := range f.docs {
		if d.ApplicationID == applicationID && d.Type == docType && d.Version > version {
			version = d.Version
		}
	}
	return version, nil
}

func (f *fakeDocRepo) Update(_ context.Context, doc *model.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.docs {
		if f.docs[i].ID == doc.ID {
			f.docs[i] = *doc
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeDocReqRepo struct {
	mu   sync.Mutex
	reqs []*model.DocumentRequest
}

func (f *fakeDocReqRepo) Create(_ context.Context, req *model.DocumentRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	for i := range req.Requirements {
		if req.Requirements[i].ID == uuid.Nil {
			req.Requirements[i].ID = uuid.New()
		}
		req.Requirements[i].RequestID = req.ID
	}
	req.CreatedAt = time.Now()
	f.reqs = append(f.reqs, req)
	return nil
}

func (f *fakeDocReqRepo) FindByID(_ context.Context, id uuid.UUID) (*model.DocumentRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reqs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeDocReqRepo) ActiveByApplication(_ context.Context, applicationID uuid.UUID, stage int) (*model.DocumentRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.reqs) - 1; i >= 0; i-- {
		r := f.reqs[i]
		if r.ApplicationID == applicationID && r.Stage == stage && r.Status != model.DocRequestCancelled {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeDocReqRepo) Update(_ context.Context, req *model.DocumentRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.reqs {
		if r.ID == req.ID {
			f.reqs[i] = req
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeDocReqRepo) UpdateRequirement(_ context.Context, requirement *model.DocumentRequirement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reqs {
		for i := range r.Requirements {
			if r.Requirements[i].ID == requirement.ID {
				r.Requirements[i] = *requirement
				return nil
			}
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeAuditRepo struct {
	mu   sync.Mutex
	logs []model.AuditLog
}

func (f *fakeAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	f.logs = append(f.logs, *entry)
	return nil
}

func (f *fakeAuditRepo) List(_ context.Context, page, limit int) ([]model.AuditLog, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.AuditLog{}, f.logs...), int64(len(f.logs)), nil
}

// fakeTxManager runs the callback without a real transaction; the fakes
// themselves are the unit of consistency here.
type fakeTxManager struct{}

func (fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []events.TransitionEvent
}

func (p *capturePublisher) PublishTransition(event events.TransitionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) all() []events.TransitionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.TransitionEvent{}, p.events...)
}

// fixture bundles the fakes and the services wired on top of them.
type fixture struct {
	apps     *fakeAppRepo
	docs     *fakeDocRepo
	reqs     *fakeDocReqRepo
	audit    *fakeAuditRepo
	bus      *capturePublisher
	triggers TriggerService
	appSvc   ApplicationService
	docSvc   DocumentService
}

var testClock = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func newFixture() *fixture {
	f := &fixture{
		apps:  newFakeAppRepo(),
		docs:  &fakeDocRepo{},
		reqs:  &fakeDocReqRepo{},
		audit: &fakeAuditRepo{},
		bus:   &capturePublisher{},
	}
	tx := fakeTxManager{}

	triggers := NewTriggerService(f.apps, f.docs, f.audit, tx, f.bus).(*triggerService)
	triggers.now = func() time.Time { return testClock }
	f.triggers = triggers

	appSvc := NewApplicationService(f.apps, f.audit, tx, f.bus, triggers).(*applicationService)
	appSvc.now = func() time.Time { return testClock }
	f.appSvc = appSvc

	docSvc := NewDocumentService(f.docs, f.reqs, f.apps, f.audit, tx, f.bus, triggers).(*documentService)
	docSvc.now = func() time.Time { return testClock }
	f.docSvc = docSvc

	return f
}

// seedApplication stores an application directly in the fake repository.
func (f *fixture) seedApplication(stage int, status string) uuid.UUID {
	app := &model.Application{
		StudentName:    "Linh Tran",
		StudentEmail:   "linh@example.com",
		UniversityName: "University of Melbourne",
		Program:        "Computer Science",
		CurrentStage:   stage,
		CurrentStatus:  status,
		Priority:       model.PriorityMedium,
	}
	_ = f.apps.Create(context.Background(), app)
	return app.ID
}

func (f *fixture) application(id uuid.UUID) *model.Application {
	app, _ := f.apps.FindByID(context.Background(), id)
	return app
}
