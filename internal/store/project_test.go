package store_test

import (
	"context"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/annolab/tile-ingest/internal/config"
	st "github.com/annolab/tile-ingest/internal/store"
	"github.com/annolab/tile-ingest/internal/store/model"
)

func newDraftProject() model.Project {
	return model.Project{
		ID:             uuid.New(),
		Name:           "roof-segmentation",
		Description:    "aerial roof dataset",
		Status:         model.ProjectStatusDraft,
		TrainingStatus: model.TrainingStatusStop,
		AnnotationClasses: []model.AnnotationClass{
			{Name: "roof", Color: "#ff0000"},
			{Name: "road", Color: "#00ff00"},
		},
	}
}

var _ = Describe("project store", Ordered, func() {
	var (
		s      st.Store
		gormdb *gorm.DB
	)

	BeforeAll(func() {
		db, err := st.InitDB(config.NewDefault())
		Expect(err).To(BeNil())

		s = st.NewStore(db)
		gormdb = db
		Expect(s.InitialMigration()).To(BeNil())
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM annotation_classes;")
		gormdb.Exec("DELETE FROM projects;")
	})

	Context("create and get", func() {
		It("round-trips a project with its annotation classes", func() {
			created, err := s.Project().Create(context.TODO(), newDraftProject())
			Expect(err).To(BeNil())
			Expect(created).ToNot(BeNil())

			got, err := s.Project().Get(context.TODO(), created.ID)
			Expect(err).To(BeNil())
			Expect(got.Name).To(Equal("roof-segmentation"))
			Expect(got.Status).To(Equal(model.ProjectStatusDraft))
			Expect(got.TotalImages).To(Equal(0))
			Expect(got.AnnotationClasses).To(HaveLen(2))
		})

		It("returns ErrRecordNotFound for a missing project", func() {
			_, err := s.Project().Get(context.TODO(), uuid.New())
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})
	})

	Context("update", func() {
		It("updates only the selected fields", func() {
			created, err := s.Project().Create(context.TODO(), newDraftProject())
			Expect(err).To(BeNil())

			status := model.ProjectStatusInProgress
			updated, err := s.Project().Update(context.TODO(), created.ID, &status, nil)
			Expect(err).To(BeNil())
			Expect(updated.Status).To(Equal(model.ProjectStatusInProgress))

			got, err := s.Project().Get(context.TODO(), created.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.ProjectStatusInProgress))
			Expect(got.TrainingStatus).To(Equal(model.TrainingStatusStop))
			Expect(got.Name).To(Equal("roof-segmentation"))
		})

		It("fails on a missing project", func() {
			status := model.ProjectStatusDraft
			_, err := s.Project().Update(context.TODO(), uuid.New(), &status, nil)
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})
	})

	Context("increment total images", func() {
		It("advances the counter by the batch length", func() {
			created, err := s.Project().Create(context.TODO(), newDraftProject())
			Expect(err).To(BeNil())

			updated, err := s.Project().IncrementTotalImages(context.TODO(), created.ID, 30)
			Expect(err).To(BeNil())
			Expect(updated.TotalImages).To(Equal(30))

			updated, err = s.Project().IncrementTotalImages(context.TODO(), created.ID, 5)
			Expect(err).To(BeNil())
			Expect(updated.TotalImages).To(Equal(35))
		})

		It("fails on a missing project", func() {
			_, err := s.Project().IncrementTotalImages(context.TODO(), uuid.New(), 1)
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})
	})

	Context("statistics", func() {
		It("aggregates totals and status counts", func() {
			first, err := s.Project().Create(context.TODO(), newDraftProject())
			Expect(err).To(BeNil())
			_, err = s.Project().Create(context.TODO(), newDraftProject())
			Expect(err).To(BeNil())

			_, err = s.Project().IncrementTotalImages(context.TODO(), first.ID, 5)
			Expect(err).To(BeNil())
			status := model.ProjectStatusInProgress
			_, err = s.Project().Update(context.TODO(), first.ID, &status, nil)
			Expect(err).To(BeNil())

			stats, err := s.Statistics(context.TODO())
			Expect(err).To(BeNil())
			Expect(stats.TotalProjects).To(Equal(2))
			Expect(stats.TotalTiles).To(Equal(5))
			Expect(stats.ProjectsByStatus).To(Equal(map[string]int{
				"IN_PROGRESS": 1,
				"DRAFT":       1,
			}))
		})
	})

	Context("list", func() {
		It("lists all projects", func() {
			_, err := s.Project().Create(context.TODO(), newDraftProject())
			Expect(err).To(BeNil())
			_, err = s.Project().Create(context.TODO(), newDraftProject())
			Expect(err).To(BeNil())

			projects, err := s.Project().List(context.TODO())
			Expect(err).To(BeNil())
			Expect(projects).To(HaveLen(2))
		})
	})
})
