package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/mfgops_backend/config"
	"bitbucket.org/mmdatafocus/mfgops_backend/models"
	"bitbucket.org/mmdatafocus/mfgops_backend/utils"
	"bitbucket.org/mmdatafocus/mfgops_backend/workflow"
	"github.com/shopspring/decimal"
)

func TestStockLedgerPostReverseRoundTrip(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "mfgops_test")
	// The gate must stay fail-closed for this scenario.
	t.Setenv("ALLOW_NEGATIVE_STOCK_TYPES", "")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}

	// Postings and audit records require an actor in context.
	ctx = utils.SetActorIdInContext(ctx, "tester-1")
	ctx = utils.SetActorNameInContext(ctx, "Tester")
	ctx = utils.SetCorrelationIdInContext(ctx, "round-trip-test")

	// 1) Register the finished-good BOM: 2045 consumes 2 KG of RM-1 per unit.
	lineage, err := models.CreateBomLineage(ctx, &models.NewBomLineage{
		ProductCode: "2045",
		ProductName: "Widget 2045",
		Category:    models.BomCategoryFinished,
	})
	if err != nil {
		t.Fatalf("CreateBomLineage: %v", err)
	}
	version, err := models.CreateBomVersion(ctx, &models.NewBomVersion{
		BomLineageId: lineage.ID,
		Components: []models.NewBomComponent{
			{ComponentCode: "RM-1", Quantity: decimal.NewFromInt(2), Uom: "KG", UnitCost: decimal.NewFromInt(500)},
		},
	})
	if err != nil {
		t.Fatalf("CreateBomVersion: %v", err)
	}
	if version.VersionNumber != 1 {
		t.Fatalf("expected version number 1; got %d", version.VersionNumber)
	}
	if _, err := models.ActivateBomVersion(ctx, version.ID); err != nil {
		t.Fatalf("ActivateBomVersion: %v", err)
	}

	// A resolver sanity check before posting against it: variant codes land on
	// the same lineage and active version.
	resolved, err := models.ResolveBom(ctx, "2045-Black")
	if err != nil {
		t.Fatalf("ResolveBom: %v", err)
	}
	if resolved.Version.ID != version.ID {
		t.Fatalf("resolved version %s, want %s", resolved.Version.ID, version.ID)
	}

	// 2) Seed opening balances: 100 KG RM-1 at STORE, 50 units 2045 at FG_STORE.
	if _, err := workflow.PostStockDocument(ctx, &workflow.StockDocument{
		PostingType: models.PostingTypeAdjustment,
		ReferenceId: "OPEN-1",
		Lines: []workflow.DocumentLine{
			{ItemCode: "RM-1", Qty: decimal.NewFromInt(100), Uom: "KG", LocationCode: models.LocationStore, Direction: models.AdjustmentDirectionOpening},
			{ItemCode: "2045", Qty: decimal.NewFromInt(50), Uom: "NOS", LocationCode: models.LocationFgStore, Direction: models.AdjustmentDirectionOpening},
		},
	}); err != nil {
		t.Fatalf("opening adjustment: %v", err)
	}
	assertBalance(t, ctx, "RM-1", models.LocationStore, "100")
	assertBalance(t, ctx, "2045", models.LocationFgStore, "50")

	// 3) Dispatch 5 units: the FG leg and the exploded RM-1 consumption must
	// both land in the same posting.
	dispatch, err := workflow.PostStockDocument(ctx, &workflow.StockDocument{
		PostingType: models.PostingTypeDispatch,
		ReferenceId: "DC-100",
		Lines: []workflow.DocumentLine{
			{ItemCode: "2045-Black", Qty: decimal.NewFromInt(5), Uom: "NOS"},
		},
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(dispatch.Legs) != 2 {
		t.Fatalf("expected 2 dispatch legs; got %d", len(dispatch.Legs))
	}
	if dispatch.BomVersionId == nil || *dispatch.BomVersionId != version.ID {
		t.Fatalf("dispatch missing BOM version id")
	}
	assertBalance(t, ctx, "2045", models.LocationFgStore, "45")
	assertBalance(t, ctx, "RM-1", models.LocationStore, "90")

	// 4) Same reference again must be rejected, not double-posted.
	_, err = workflow.PostStockDocument(ctx, &workflow.StockDocument{
		PostingType: models.PostingTypeDispatch,
		ReferenceId: "DC-100",
		Lines: []workflow.DocumentLine{
			{ItemCode: "2045", Qty: decimal.NewFromInt(1), Uom: "NOS"},
		},
	})
	if !errors.Is(err, models.ErrAlreadyPosted) {
		t.Fatalf("duplicate reference: got %v, want ErrAlreadyPosted", err)
	}
	assertBalance(t, ctx, "2045", models.LocationFgStore, "45")

	// 5) An oversized dispatch fails closed and leaves the ledger untouched.
	_, err = workflow.PostStockDocument(ctx, &workflow.StockDocument{
		PostingType: models.PostingTypeDispatch,
		ReferenceId: "DC-BIG",
		Lines: []workflow.DocumentLine{
			{ItemCode: "2045", Qty: decimal.NewFromInt(1000000), Uom: "NOS"},
		},
	})
	var ise *models.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("oversized dispatch: got %v, want InsufficientStockError", err)
	}
	if ise.Available.Cmp(decimal.NewFromInt(45)) != 0 {
		t.Fatalf("oversized dispatch available = %s, want 45", ise.Available.String())
	}
	assertBalance(t, ctx, "2045", models.LocationFgStore, "45")
	assertBalance(t, ctx, "RM-1", models.LocationStore, "90")

	// 6) Reverse the dispatch: balances return to the opening state and the
	// original goes terminal.
	reversal, err := workflow.ReversePosting(ctx, dispatch.ID, "wrong truck")
	if err != nil {
		t.Fatalf("ReversePosting: %v", err)
	}
	if !reversal.IsReversal || reversal.ReversesPostingId == nil || *reversal.ReversesPostingId != dispatch.ID {
		t.Fatalf("reversal not linked to original: %+v", reversal)
	}
	assertBalance(t, ctx, "2045", models.LocationFgStore, "50")
	assertBalance(t, ctx, "RM-1", models.LocationStore, "100")

	original, err := models.GetPosting(ctx, dispatch.ID)
	if err != nil {
		t.Fatalf("GetPosting(original): %v", err)
	}
	if original.Status != models.PostingStatusReversed {
		t.Fatalf("original status = %s, want reversed", original.Status)
	}

	// 7) A posting is reversed at most once.
	if _, err := workflow.ReversePosting(ctx, dispatch.ID, "again"); !errors.Is(err, models.ErrAlreadyReversed) {
		t.Fatalf("second reversal: got %v, want ErrAlreadyReversed", err)
	}
	if _, err := workflow.ReversePosting(ctx, reversal.ID, "undo the undo"); err == nil {
		t.Fatalf("reversing a reversal must fail")
	}

	// 8) The ledger view shows both sides of the dispatch under its reference.
	rows, err := models.LedgerRange(ctx, models.LedgerFilter{ItemCode: "2045", LocationCode: models.LocationFgStore}, 100, 0)
	if err != nil {
		t.Fatalf("LedgerRange: %v", err)
	}
	net := decimal.Zero
	for _, row := range rows {
		net = net.Add(row.Qty)
	}
	if net.Cmp(decimal.NewFromInt(50)) != 0 {
		t.Fatalf("ledger net for 2045 at FG_STORE = %s, want 50", net.String())
	}

	// 9) Every mutation left an audit outbox row behind, in the same commit.
	var auditCount int64
	if err := db.WithContext(ctx).Model(&models.AuditRecord{}).
		Where("action IN ?", []models.AuditAction{models.AuditActionPost, models.AuditActionReverse}).
		Count(&auditCount).Error; err != nil {
		t.Fatalf("count audit records: %v", err)
	}
	// opening + dispatch posts, one reversal.
	if auditCount != 3 {
		t.Fatalf("audit outbox rows = %d, want 3", auditCount)
	}

	// 10) Cancel-then-repost: once DC-100 is reversed, the same reference can
	// be posted again. Only live postings block a reference.
	repost, err := workflow.PostStockDocument(ctx, &workflow.StockDocument{
		PostingType: models.PostingTypeDispatch,
		ReferenceId: "DC-100",
		Lines: []workflow.DocumentLine{
			{ItemCode: "2045-Black", Qty: decimal.NewFromInt(5), Uom: "NOS"},
		},
	})
	if err != nil {
		t.Fatalf("repost after reversal: %v", err)
	}
	if repost.ID == dispatch.ID {
		t.Fatalf("repost reused the reversed posting id")
	}
	assertBalance(t, ctx, "2045", models.LocationFgStore, "45")
	assertBalance(t, ctx, "RM-1", models.LocationStore, "90")

	// 11) Two concurrent dispatches compete for 45 units of finished stock.
	// Exactly one may pass the gate; the loser must see the winner's legs and
	// fail closed, never driving the balance negative.
	type raceResult struct {
		ref string
		err error
	}
	results := make(chan raceResult, 2)
	var wg sync.WaitGroup
	for _, ref := range []string{"DC-RACE-A", "DC-RACE-B"} {
		wg.Add(1)
		go func(ref string) {
			defer wg.Done()
			_, err := workflow.PostStockDocument(ctx, &workflow.StockDocument{
				PostingType: models.PostingTypeDispatch,
				ReferenceId: ref,
				Lines: []workflow.DocumentLine{
					{ItemCode: "2045", Qty: decimal.NewFromInt(30), Uom: "NOS"},
				},
			})
			results <- raceResult{ref: ref, err: err}
		}(ref)
	}
	wg.Wait()
	close(results)

	var raceWins, raceShortfalls int
	for res := range results {
		if res.err == nil {
			raceWins++
			continue
		}
		var shortfall *models.InsufficientStockError
		if !errors.As(res.err, &shortfall) {
			t.Fatalf("racing dispatch %s: got %v, want InsufficientStockError", res.ref, res.err)
		}
		raceShortfalls++
	}
	if raceWins != 1 || raceShortfalls != 1 {
		t.Fatalf("racing dispatches: %d succeeded, %d failed closed; want exactly 1 each", raceWins, raceShortfalls)
	}
	assertBalance(t, ctx, "2045", models.LocationFgStore, "15")
	assertBalance(t, ctx, "RM-1", models.LocationStore, "30")

	// 12) Concurrent activations on one lineage: whatever each caller sees,
	// the lineage ends with exactly one active version.
	v2, err := models.CreateBomVersion(ctx, &models.NewBomVersion{
		BomLineageId: lineage.ID,
		Components: []models.NewBomComponent{
			{ComponentCode: "RM-1", Quantity: decimal.NewFromInt(3), Uom: "KG", UnitCost: decimal.NewFromInt(500)},
		},
	})
	if err != nil {
		t.Fatalf("CreateBomVersion(v2): %v", err)
	}
	activationErrs := make(chan error, 2)
	for _, id := range []string{version.ID, v2.ID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := models.ActivateBomVersion(ctx, id)
			activationErrs <- err
		}(id)
	}
	wg.Wait()
	close(activationErrs)
	for err := range activationErrs {
		if err != nil && !errors.Is(err, models.ErrConflict) {
			t.Fatalf("concurrent activation: got %v, want nil or ErrConflict", err)
		}
	}
	var activeCount int64
	if err := db.WithContext(ctx).Model(&models.BomVersion{}).
		Where("bom_lineage_id = ? AND is_active = ?", lineage.ID, true).
		Count(&activeCount).Error; err != nil {
		t.Fatalf("count active versions: %v", err)
	}
	if activeCount != 1 {
		t.Fatalf("active versions on lineage = %d, want exactly 1", activeCount)
	}
}

func assertBalance(t *testing.T, ctx context.Context, itemCode string, locationCode models.LocationCode, want string) {
	t.Helper()
	balance, err := models.CurrentBalance(ctx, itemCode, locationCode)
	if err != nil {
		t.Fatalf("CurrentBalance(%s, %s): %v", itemCode, locationCode, err)
	}
	wantDec, err := decimal.NewFromString(want)
	if err != nil {
		t.Fatalf("bad expected balance %q: %v", want, err)
	}
	if balance.Cmp(wantDec) != 0 {
		t.Fatalf("balance of %s at %s = %s, want %s", itemCode, locationCode, balance.String(), want)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("mfgops-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("mfgops-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=mfgops_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
