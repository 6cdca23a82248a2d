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

func placeholders(projectID uuid.UUID, start, count, classCount int) []model.Annotation {
	annotations := make([]model.Annotation, count)
	for i := 0; i < count; i++ {
		annotations[i] = model.NewEmptyAnnotation(projectID, start+i, classCount)
	}
	return annotations
}

var _ = Describe("annotation store", Ordered, func() {
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
		gormdb.Exec("DELETE FROM annotations;")
	})

	Context("bulk upsert", func() {
		It("registers one placeholder per tile index", func() {
			projectID := uuid.New()
			err := s.Annotation().BulkUpsert(context.TODO(), placeholders(projectID, 0, 30, 2))
			Expect(err).To(BeNil())

			count, err := s.Annotation().Count(context.TODO(), projectID)
			Expect(err).To(BeNil())
			Expect(count).To(Equal(int64(30)))

			annotation, err := s.Annotation().Get(context.TODO(), projectID, 17)
			Expect(err).To(BeNil())

			masks, err := annotation.DecodeMasks()
			Expect(err).To(BeNil())
			Expect(masks).To(HaveLen(2))
			Expect(masks[0]).To(BeEmpty())

			lines, err := annotation.DecodeLines()
			Expect(err).To(BeNil())
			Expect(lines).To(BeEmpty())
		})

		It("leaves existing records untouched on re-run", func() {
			projectID := uuid.New()
			err := s.Annotation().BulkUpsert(context.TODO(), placeholders(projectID, 0, 5, 1))
			Expect(err).To(BeNil())

			// Simulate the annotation editor writing a stroke.
			tx := gormdb.Exec(
				"UPDATE annotations SET lines = ? WHERE project_id = ? AND image_index = ?",
				`[{"tool":"PEN","size":4,"annotationClassId":"c1","points":[1,2,3,4]}]`,
				projectID, 3,
			)
			Expect(tx.Error).To(BeNil())

			err = s.Annotation().BulkUpsert(context.TODO(), placeholders(projectID, 0, 5, 1))
			Expect(err).To(BeNil())

			count, err := s.Annotation().Count(context.TODO(), projectID)
			Expect(err).To(BeNil())
			Expect(count).To(Equal(int64(5)))

			annotation, err := s.Annotation().Get(context.TODO(), projectID, 3)
			Expect(err).To(BeNil())
			lines, err := annotation.DecodeLines()
			Expect(err).To(BeNil())
			Expect(lines).To(HaveLen(1))
			Expect(lines[0].Tool).To(Equal(model.ToolPen))
		})

		It("only inserts missing indices", func() {
			projectID := uuid.New()
			err := s.Annotation().BulkUpsert(context.TODO(), placeholders(projectID, 0, 3, 1))
			Expect(err).To(BeNil())

			err = s.Annotation().BulkUpsert(context.TODO(), placeholders(projectID, 0, 6, 1))
			Expect(err).To(BeNil())

			count, err := s.Annotation().Count(context.TODO(), projectID)
			Expect(err).To(BeNil())
			Expect(count).To(Equal(int64(6)))
		})

		It("accepts an empty batch", func() {
			Expect(s.Annotation().BulkUpsert(context.TODO(), nil)).To(BeNil())
		})
	})

	Context("get", func() {
		It("returns ErrRecordNotFound for a missing record", func() {
			_, err := s.Annotation().Get(context.TODO(), uuid.New(), 0)
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})
	})

	Context("list", func() {
		It("orders by image index", func() {
			projectID := uuid.New()
			err := s.Annotation().BulkUpsert(context.TODO(), placeholders(projectID, 0, 4, 1))
			Expect(err).To(BeNil())

			annotations, err := s.Annotation().List(context.TODO(), projectID)
			Expect(err).To(BeNil())
			Expect(annotations).To(HaveLen(4))
			for i, a := range annotations {
				Expect(a.ImageIndex).To(Equal(i))
			}
		})
	})
})
