package sqlinline

import (
	"regexp"
	"strings"
	"testing"
)

var markerRegexp = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestStatementsCarryUniqueMarkers(t *testing.T) {
	statements := map[string]string{
		"QInsertNovel":            QInsertNovel,
		"QSelectNovel":            QSelectNovel,
		"QUpdateNovelStage":       QUpdateNovelStage,
		"QMarkNovelFailed":        QMarkNovelFailed,
		"QDeleteNovel":            QDeleteNovel,
		"QMarkStaleNovels":        QMarkStaleNovels,
		"QClaimNextNovel":         QClaimNextNovel,
		"QRenewNovelLease":        QRenewNovelLease,
		"QReleaseNovel":           QReleaseNovel,
		"QCreateSchema":           QCreateSchema,
		"QSelectIntegrationToken": QSelectIntegrationToken,
		"QUpsertIntegrationToken": QUpsertIntegrationToken,
	}
	seen := map[string]string{}
	for name, stmt := range statements {
		first := strings.SplitN(strings.TrimSpace(stmt), "\n", 2)[0]
		if !markerRegexp.MatchString(first) {
			t.Errorf("%s: invalid marker line %q", name, first)
			continue
		}
		if other, ok := seen[first]; ok {
			t.Errorf("%s reuses the marker of %s", name, other)
		}
		seen[first] = name
	}
}

func TestUpdateIsConditionalOnStage(t *testing.T) {
	if !strings.Contains(QUpdateNovelStage, "and stage = $2") {
		t.Fatal("stage update must compare the stored stage")
	}
	if !strings.Contains(QClaimNextNovel, "for update skip locked") {
		t.Fatal("claim must skip rows locked by other workers")
	}
}
