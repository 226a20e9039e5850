package integration

import (
	"testing"

	"github.com/dimitrije/listshub-api/internal/database"
	"github.com/dimitrije/listshub-api/internal/entitlement"
	"github.com/dimitrije/listshub-api/internal/services"
	"github.com/dimitrije/listshub-api/tests/testutil"
)

// env bundles the services under test over one container-backed database.
type env struct {
	db       *database.DB
	fixtures *testutil.Fixtures
	users    *services.UserService
	families *services.FamilyService
	invites  *services.InviteService
	lists    *services.ListService
	accounts *services.AccountService
	sessions *services.SessionService
	tokens   *services.TokenService
	mailer   *testutil.MockMailer
}

// setupTest creates a test database and wires the services against it.
// Metrics and events are disabled and mail goes to a mock.
func setupTest(t *testing.T) *env {
	t.Helper()
	tdb := testutil.SetupTestDB(t)

	evaluator := entitlement.NewEvaluator(entitlement.DefaultCatalog())
	users := services.NewUserService(tdb.DB)
	invites := services.NewInviteService(tdb.DB, nil, nil, 0)
	mailer := &testutil.MockMailer{}

	return &env{
		db:       tdb.DB,
		fixtures: testutil.NewFixtures(tdb.DB),
		users:    users,
		families: services.NewFamilyService(tdb.DB, evaluator, nil, nil),
		invites:  invites,
		lists:    services.NewListService(tdb.DB, evaluator, nil, nil),
		accounts: services.NewAccountService(tdb.DB, users, invites, mailer, nil, "http://localhost/reset"),
		sessions: services.NewSessionService(tdb.DB, users, evaluator),
		tokens:   services.NewTokenService(tdb.DB),
		mailer:   mailer,
	}
}
