// Package retrieval serves stored files to holders of a valid file token.
//
// A request is checked against its token first. Bytes are then looked up in
// the metadata catalog plus file store, and failing that in the in-memory
// upload cache. The first tier that yields content wins.
package retrieval

import (
	"context"
	"errors"
	"net/url"

	"smartfile-qa/internal/cache"
	"smartfile-qa/internal/filestore"
	"smartfile-qa/internal/model"
	"smartfile-qa/internal/pkg/filetoken"
	"smartfile-qa/internal/pkg/logging"
	"smartfile-qa/internal/pkg/safename"
)

// CurrentFileID addresses a session's latest in-memory upload.
const CurrentFileID = "current"

var errCatalogMiss = errors.New("no catalog entry for file")

type TokenVerifier interface {
	Verify(token string) (*filetoken.Claims, error)
}

type Catalog interface {
	ListSessionFiles(ctx context.Context, sessionKey string) ([]model.File, error)
}

type FileReader interface {
	Read(ctx context.Context, relPath string) ([]byte, error)
}

type UploadLookup interface {
	Get(sessionID string) (cache.Upload, bool)
}

type Request struct {
	SessionID string
	FileID    string
	Filename  string
	Token     string
	Preview   bool
}

type Resolver struct {
	tokens  TokenVerifier
	catalog Catalog
	files   FileReader
	uploads UploadLookup
}

func NewResolver(tokens TokenVerifier, catalog Catalog, files FileReader, uploads UploadLookup) *Resolver {
	return &Resolver{
		tokens:  tokens,
		catalog: catalog,
		files:   files,
		uploads: uploads,
	}
}

// Resolve verifies req.Token and returns the file it grants. Errors are
// *ResolveError values whose Kind is one of the package sentinels.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Delivery, error) {
	claims, err := r.tokens.Verify(req.Token)
	if err != nil {
		return nil, &ResolveError{Kind: ErrUnauthorized}
	}
	if claims.SessionID != req.SessionID || claims.FileID != req.FileID {
		logging.Warn("file token used outside its binding",
			"path_session", req.SessionID, "path_file", req.FileID, "token_id", claims.ID)
		return nil, &ResolveError{Kind: ErrUnauthorized}
	}

	outcomes := make([]TierOutcome, 0, 2)

	delivery, outcome := r.fromCatalog(ctx, req)
	outcomes = append(outcomes, outcome)
	if delivery == nil {
		delivery, outcome = r.fromCache(req)
		outcomes = append(outcomes, outcome)
	}

	if delivery == nil {
		kind, cause := unresolvedKind(outcomes)
		logging.Warn("secure download unresolved",
			"session", req.SessionID, "file", req.FileID, "kind", kind, "tiers", describe(outcomes))
		return nil, &ResolveError{Kind: kind, Cause: cause, Outcomes: outcomes}
	}
	if len(delivery.Data) == 0 {
		logging.Warn("secure download resolved empty content",
			"session", req.SessionID, "file", req.FileID, "source", delivery.Source)
		return nil, &ResolveError{Kind: ErrNotFound, Cause: errors.New("file is empty or corrupted"), Outcomes: outcomes}
	}

	delivery.Preview = req.Preview
	delivery.Outcomes = outcomes
	if outcomes[0].Err != nil && !outcomes[0].Skipped {
		logging.Info("secure download served from fallback tier",
			"session", req.SessionID, "file", req.FileID, "source", delivery.Source, "catalog_err", outcomes[0].Err)
	} else {
		logging.Debug("secure download resolved", "session", req.SessionID, "file", req.FileID, "source", delivery.Source)
	}
	return delivery, nil
}

func (r *Resolver) fromCatalog(ctx context.Context, req Request) (*Delivery, TierOutcome) {
	outcome := TierOutcome{Tier: TierCatalog}
	if req.FileID == CurrentFileID || r.catalog == nil {
		outcome.Skipped = true
		return nil, outcome
	}

	files, err := r.catalog.ListSessionFiles(ctx, req.SessionID)
	if err != nil {
		outcome.Err = err
		return nil, outcome
	}

	var match *model.File
	for i := range files {
		if files[i].Key() == req.FileID {
			match = &files[i]
			break
		}
	}
	if match == nil {
		outcome.Err = errCatalogMiss
		return nil, outcome
	}

	data, err := r.files.Read(ctx, match.StoragePath)
	if err != nil {
		outcome.Err = err
		return nil, outcome
	}

	outcome.Hit = true
	return &Delivery{
		Data:     data,
		Filename: match.OriginalName,
		MimeType: match.MimeType,
		Source:   TierCatalog,
	}, outcome
}

func (r *Resolver) fromCache(req Request) (*Delivery, TierOutcome) {
	outcome := TierOutcome{Tier: TierCache}
	if r.uploads == nil {
		outcome.Skipped = true
		return nil, outcome
	}

	upload, ok := r.uploads.Get(req.SessionID)
	if !ok {
		outcome.Err = errors.New("no cached upload for session")
		return nil, outcome
	}

	requested := req.Filename
	if decoded, err := url.PathUnescape(requested); err == nil {
		requested = decoded
	}
	if requested != upload.Filename && requested != safename.Sanitize(upload.Filename) {
		outcome.Err = errors.New("cached upload has a different name")
		return nil, outcome
	}

	outcome.Hit = true
	return &Delivery{
		Data:     upload.Data,
		Filename: upload.Filename,
		MimeType: upload.MimeType,
		Source:   TierCache,
	}, outcome
}

// unresolvedKind keeps storage faults from the catalog tier visible instead
// of reporting them as a plain miss.
func unresolvedKind(outcomes []TierOutcome) (error, error) {
	for _, o := range outcomes {
		if o.Tier != TierCatalog || o.Err == nil {
			continue
		}
		switch {
		case errors.Is(o.Err, filestore.ErrPermission):
			return ErrForbidden, o.Err
		case errors.Is(o.Err, filestore.ErrExhausted):
			return ErrUnavailable, o.Err
		case errors.Is(o.Err, filestore.ErrIO):
			return ErrStorage, o.Err
		}
	}
	return ErrNotFound, nil
}

func describe(outcomes []TierOutcome) []string {
	out := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		switch {
		case o.Skipped:
			out = append(out, string(o.Tier)+"=skipped")
		case o.Hit:
			out = append(out, string(o.Tier)+"=hit")
		default:
			out = append(out, string(o.Tier)+"="+o.Err.Error())
		}
	}
	return out
}
