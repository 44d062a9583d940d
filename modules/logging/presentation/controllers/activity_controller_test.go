package controllers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/testbench/modules"
	"github.com/iota-uz/testbench/modules/catalog/domain/assignment"
	"github.com/iota-uz/testbench/modules/catalog/domain/hierarchy"
	"github.com/iota-uz/testbench/modules/logging/domain/entities/activitylog"
	"github.com/iota-uz/testbench/modules/logging/presentation/controllers"
	"github.com/iota-uz/testbench/pkg/itf"
)

func TestActivity_List(t *testing.T) {
	s := itf.HTTP(t, modules.BuiltInModules()...)
	org := s.Organization("Acme")
	admin := s.User(org, "admin@acme.test", "ADMIN")
	tester := s.User(org, "tester@acme.test", "TESTER")
	qa := s.User(org, "qa@acme.test", "QA")
	s.User(s.Organization("Globex"), "admin@globex.test", "ADMIN")

	var p hierarchy.Project
	s.AsUser(admin).POST("/api/v1/projects").JSON(map[string]string{"name": "Shop"}).
		Expect(t).Status(http.StatusCreated).JSON(&p)
	s.AsUser(admin).POST("/api/v1/assignments/projects").
		JSON(assignment.ProjectAssignDTO{UserID: tester.ID().String(), ProjectID: p.ID.String()}).
		Expect(t).Status(http.StatusCreated)

	var all controllers.ActivityResponse
	s.AsUser(admin).GET("/api/v1/activity").Expect(t).Status(http.StatusOK).JSON(&all)
	require.Equal(t, int64(4), all.Total)
	require.Equal(t, 50, all.Limit)
	for _, entry := range all.Data {
		require.Equal(t, org.ID, entry.OrganizationID)
	}

	var assigned controllers.ActivityResponse
	s.AsUser(admin).GET("/api/v1/activity?action=" + activitylog.ActionProjectAssigned).
		Expect(t).Status(http.StatusOK).JSON(&assigned)
	require.Len(t, assigned.Data, 1)
	require.Equal(t, p.ID, assigned.Data[0].SubjectID)
	require.NotNil(t, assigned.Data[0].ActorID)
	require.Equal(t, admin.ID(), *assigned.Data[0].ActorID)

	var page controllers.ActivityResponse
	s.AsUser(admin).GET("/api/v1/activity?limit=2&offset=1").Expect(t).Status(http.StatusOK).JSON(&page)
	require.Len(t, page.Data, 2)
	require.Equal(t, int64(4), page.Total)

	s.AsUser(qa).GET("/api/v1/activity").Expect(t).Status(http.StatusForbidden)
	s.Anonymous().GET("/api/v1/activity").Expect(t).Status(http.StatusUnauthorized)
}

func TestActivity_RejectsBadQuery(t *testing.T) {
	s := itf.HTTP(t, modules.BuiltInModules()...)
	admin := s.User(s.Organization("Acme"), "admin@acme.test", "ADMIN")

	for _, q := range []string{"actor_id=nope", "from=yesterday", "limit=-1", "offset=x"} {
		env := s.AsUser(admin).GET("/api/v1/activity?" + q).Expect(t).Status(http.StatusBadRequest).Error()
		require.Equal(t, "INVALID_QUERY", env.Code, q)
	}
	s.AsUser(admin).GET("/api/v1/activity?from=2026-01-01&to=2026-12-31T00:00:00Z").Expect(t).Status(http.StatusOK)
}
