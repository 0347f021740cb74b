package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"dpp-certification/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Feature: certification-lifecycle, Property 5: Document rejection requires a reason
func TestProperty_DocumentRejectionRequiresReason(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("reject fails with ValidationError for blank reasons and records non-blank ones", prop.ForAll(
		func(reason string) bool {
			f := newFixture(t)
			d := f.seedDocument(f.brand, nil, domain.DocTaxPlate, domain.DocumentPending, 1)

			got, err := f.documents.Reject(context.Background(), f.admin, d.ID, reason)
			if blank(reason) {
				return domain.IsKind(err, domain.ErrValidation) && f.db.documents[d.ID].Status == domain.DocumentPending
			}
			if err != nil {
				t.Logf("FAIL: reject(%q) returned %v", reason, err)
				return false
			}
			return got.Status == domain.DocumentRejected &&
				got.RejectionReason != nil && *got.RejectionReason == reason
		},
		gen.OneGenOf(
			gen.RegexMatch(`[ \t]{0,3}`),
			gen.RegexMatch(`[a-z]{1,10}( [a-z0-9]{1,6}){0,3}`),
		),
	))

	properties.TestingRun(t)
}

// Feature: certification-lifecycle, Property 6: Reupload resets and versions
func TestProperty_ReuploadResetsAndVersions(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("each reupload after a rejection bumps the version by one and clears the reason", prop.ForAll(
		func(startVersion, rounds int) bool {
			f := newFixture(t)
			ctx := context.Background()
			d := f.seedDocument(f.brand, nil, domain.DocISOCertificate, domain.DocumentRejected, startVersion)
			oldPath := d.FilePath

			for i := 0; i < rounds; i++ {
				if i > 0 {
					if _, err := f.documents.Reject(ctx, f.admin, d.ID, "still blurry"); err != nil {
						return false
					}
				}
				got, err := f.documents.ReopenForReupload(ctx, f.brand, d.ID, pdf("rescan.pdf"))
				if err != nil {
					t.Logf("FAIL: round %d returned %v", i, err)
					return false
				}
				if got.Status != domain.DocumentPending || got.RejectionReason != nil || got.Version != startVersion+i+1 {
					return false
				}
				if got.FilePath == oldPath {
					return false
				}
				oldPath = got.FilePath
			}
			return true
		},
		gen.IntRange(1, 5),
		gen.IntRange(1, 4),
	))

	properties.TestingRun(t)
}

func TestReopenForReuploadFromVersionTwo(t *testing.T) {
	f := newFixture(t)
	d := f.seedDocument(f.brand, nil, domain.DocISOCertificate, domain.DocumentRejected, 2)

	got, err := f.documents.ReopenForReupload(context.Background(), f.brand, d.ID, pdf("v3.pdf"))
	require.NoError(t, err)

	assert.Equal(t, domain.DocumentPending, got.Status)
	assert.Equal(t, 3, got.Version)
	assert.Nil(t, got.RejectionReason)

	log, err := f.documents.AuditLog(context.Background(), f.brand, d.ID)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, domain.DocumentRejected, *log[0].From)
	assert.Equal(t, domain.DocumentPending, log[0].To)
	assert.Equal(t, 3, log[0].Version)
	require.NotNil(t, log[0].Reason)
	assert.Equal(t, "replaces "+d.FilePath, *log[0].Reason)

	// the superseded file stays behind for the earlier audit entries
	assert.Contains(t, f.store.files, d.FilePath)
	assert.Contains(t, f.store.files, got.FilePath)
	assert.NotEqual(t, d.FilePath, got.FilePath)
}

func TestReopenForReuploadRefusals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("wrong owner", func(t *testing.T) {
		d := f.seedDocument(f.brand, nil, domain.DocTaxPlate, domain.DocumentRejected, 1)
		files := f.store.Count()

		_, err := f.documents.ReopenForReupload(ctx, f.outsider, d.ID, pdf("x.pdf"))
		assert.ErrorIs(t, err, domain.ErrForbidden)
		assert.Equal(t, files, f.store.Count())
	})

	t.Run("not rejected", func(t *testing.T) {
		d := f.seedDocument(f.brand, nil, domain.DocTaxPlate, domain.DocumentApproved, 1)

		_, err := f.documents.ReopenForReupload(ctx, f.brand, d.ID, pdf("x.pdf"))
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		assert.Equal(t, 1, f.db.documents[d.ID].Version)
	})

	t.Run("store outage leaves the row untouched", func(t *testing.T) {
		d := f.seedDocument(f.brand, nil, domain.DocTaxPlate, domain.DocumentRejected, 1)
		f.store.failNext = errStoreDown

		_, err := f.documents.ReopenForReupload(ctx, f.brand, d.ID, pdf("x.pdf"))
		assert.ErrorIs(t, err, errStoreDown)
		assert.Equal(t, domain.DocumentRejected, f.db.documents[d.ID].Status)
	})
}

func TestApproveAndRejectRequirePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.seedDocument(f.brand, nil, domain.DocQualityCertificate, domain.DocumentPending, 1)

	_, err := f.documents.Approve(ctx, f.brand, d.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := f.documents.Approve(ctx, f.admin, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentApproved, got.Status)

	_, err = f.documents.Approve(ctx, f.admin, d.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.documents.Reject(ctx, f.admin, d.ID, "too late")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	log, err := f.documents.AuditLog(ctx, f.admin, d.ID)
	require.NoError(t, err)
	assert.Len(t, log, 1)
}

func TestRepeatedDecisionByAnotherAdminIsRefused(t *testing.T) {
	ctx := context.Background()

	t.Run("approve", func(t *testing.T) {
		f := newFixture(t)
		second := f.seedActor(domain.CompanyAdmin, domain.RoleAdmin)
		d := f.seedDocument(f.brand, nil, domain.DocTaxPlate, domain.DocumentPending, 1)

		_, err := f.documents.Approve(ctx, f.admin, d.ID)
		require.NoError(t, err)

		_, err = f.documents.Approve(ctx, second, d.ID)
		var te *domain.TransitionError
		require.True(t, errors.As(err, &te), "got %v", err)
		assert.Equal(t, "approved", te.From)
		assert.Equal(t, "approved", te.To)

		log, err := f.documents.AuditLog(ctx, f.admin, d.ID)
		require.NoError(t, err)
		require.Len(t, log, 1)
		assert.Equal(t, f.admin.UserID, log[0].ActorID)
	})

	t.Run("reject", func(t *testing.T) {
		f := newFixture(t)
		second := f.seedActor(domain.CompanyAdmin, domain.RoleAdmin)
		d := f.seedDocument(f.brand, nil, domain.DocTaxPlate, domain.DocumentPending, 1)

		_, err := f.documents.Reject(ctx, f.admin, d.ID, "missing page 3")
		require.NoError(t, err)

		_, err = f.documents.Reject(ctx, second, d.ID, "wrong stamp")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		got, err := f.documents.Get(ctx, f.admin, d.ID)
		require.NoError(t, err)
		require.NotNil(t, got.RejectionReason)
		assert.Equal(t, "missing page 3", *got.RejectionReason)
		assert.Equal(t, []string{"document:invalid_transition"}, f.metrics.refused)
	})
}

func TestSecondReviewerObservesFirstDecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.seedDocument(f.brand, nil, domain.DocTaxPlate, domain.DocumentPending, 1)

	_, err := f.documents.Reject(ctx, f.admin, d.ID, "wrong company name")
	require.NoError(t, err)

	_, err = f.documents.Approve(ctx, f.admin, d.ID)
	var te *domain.TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "rejected", te.From)
	assert.Equal(t, "approved", te.To)
}

func TestSubmitValidatesBeforeStoring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	files := f.store.Count()

	_, err := f.documents.Submit(ctx, f.brand, SubmitInput{Type: "passport_photo", File: pdf("a.pdf")})
	fe, ok := domain.AsFieldError(err)
	require.True(t, ok)
	assert.Equal(t, "type", fe.Field)

	_, err = f.documents.Submit(ctx, f.brand, SubmitInput{Type: domain.DocTaxPlate, File: pdf("a.exe")})
	fe, ok = domain.AsFieldError(err)
	require.True(t, ok)
	assert.Equal(t, "file", fe.Field)

	assert.Equal(t, files, f.store.Count())
	assert.Empty(t, f.db.documents)
	assert.Equal(t, []string{uploadRejected, uploadRejected}, f.metrics.uploads)
}

func TestSubmitNeverLeavesOrphans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("store failure writes no row", func(t *testing.T) {
		f.store.failNext = errStoreDown
		_, err := f.documents.Submit(ctx, f.brand, SubmitInput{Type: domain.DocTaxPlate, File: pdf("a.pdf")})
		assert.ErrorIs(t, err, errStoreDown)
		assert.Empty(t, f.db.documents)
	})

	t.Run("row failure removes the stored file", func(t *testing.T) {
		f.docRepo.failCreate = errors.New("connection reset")
		defer func() { f.docRepo.failCreate = nil }()

		_, err := f.documents.Submit(ctx, f.brand, SubmitInput{Type: domain.DocTaxPlate, File: pdf("a.pdf")})
		require.Error(t, err)
		assert.Zero(t, f.store.Count())
	})
}

func TestSubmitForeignProductIsForbidden(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(f.brand, domain.ProductDraft)

	_, err := f.documents.Submit(context.Background(), f.outsider, SubmitInput{Type: domain.DocTaxPlate, ProductID: &p.ID, File: pdf("a.pdf")})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Zero(t, f.store.Count())
}

func TestExpiredDocumentsReadAsExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.seedDocument(f.brand, nil, domain.DocExportCertificate, domain.DocumentApproved, 1)
	until := f.now.Add(-time.Hour)
	f.db.documents[d.ID].ValidUntil = &until

	got, err := f.documents.Get(ctx, f.brand, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentExpired, got.Status)
	assert.Equal(t, domain.DocumentApproved, f.db.documents[d.ID].Status)

	pending := f.seedDocument(f.brand, nil, domain.DocExportCertificate, domain.DocumentPending, 1)
	f.db.documents[pending.ID].ValidUntil = &until
	_, err = f.documents.Approve(ctx, f.admin, pending.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestExpiredDocumentDoesNotCountTowardsEligibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.products.Create(ctx, f.brand, readyInput())
	require.NoError(t, err)

	expired := f.now.Add(-time.Minute)
	for _, dt := range []domain.DocumentType{domain.DocSignatureCircular, domain.DocISOCertificate} {
		_, err := f.documents.Submit(ctx, f.brand, SubmitInput{Type: dt, ProductID: &p.ID, File: pdf("a.pdf")})
		require.NoError(t, err)
	}
	_, err = f.documents.Submit(ctx, f.brand, SubmitInput{Type: domain.DocProductionPermit, ProductID: &p.ID, ValidUntil: &expired, File: pdf("a.pdf")})
	require.NoError(t, err)

	assert.Equal(t, domain.ProductDraft, f.status(p.ID))
}

func TestDocumentReadAuthority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(f.brand, domain.ProductDraft)
	d := f.seedDocument(f.brand, &p.ID, domain.DocTaxPlate, domain.DocumentPending, 1)

	_, err := f.documents.Get(ctx, f.outsider, d.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.documents.List(ctx, f.outsider, &p.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	list, err := f.documents.List(ctx, f.admin, &p.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	own, err := f.documents.List(ctx, f.brand, nil)
	require.NoError(t, err)
	assert.Len(t, own, 1)

	_, err = f.documents.Get(ctx, f.admin, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.seedDocument(f.brand, nil, domain.DocTaxPlate, domain.DocumentPending, 1)

	url, err := f.documents.URL(ctx, f.brand, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.test/"+d.FilePath, url)

	delete(f.store.files, d.FilePath)
	_, err = f.documents.URL(ctx, f.brand, d.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentDecisionsArePublished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.seedDocument(f.brand, nil, domain.DocTaxPlate, domain.DocumentPending, 1)

	_, err := f.documents.Reject(ctx, f.admin, d.ID, "expired stamp")
	require.NoError(t, err)

	published := f.events.Events()
	require.Len(t, published, 1)
	assert.Equal(t, domain.EventDocumentStatus, published[0].Type)
	assert.Equal(t, "pending", published[0].From)
	assert.Equal(t, "rejected", published[0].To)
	assert.Equal(t, "expired stamp", published[0].Reason)
	assert.Equal(t, f.admin.UserID, published[0].ActorID)
}
