package service_test

import (
	"bytes"
	"context"
	"errors"
	goimage "image"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/annolab/tile-ingest/internal/config"
	"github.com/annolab/tile-ingest/internal/pod"
	"github.com/annolab/tile-ingest/internal/service"
	st "github.com/annolab/tile-ingest/internal/store"
	"github.com/annolab/tile-ingest/internal/store/model"
)

func encodePNG(width, height int) []byte {
	var buf bytes.Buffer
	err := imaging.Encode(&buf, goimage.NewNRGBA(goimage.Rect(0, 0, width, height)), imaging.PNG)
	Expect(err).To(BeNil())
	return buf.Bytes()
}

var _ = Describe("ingest service", Ordered, func() {
	var (
		s      *countingStore
		gormdb *gorm.DB
		cfg    *config.Config
		blobs  *memBlobStore
		client *fake.Clientset
	)

	BeforeAll(func() {
		db, err := st.InitDB(config.NewDefault())
		Expect(err).To(BeNil())

		gormdb = db
		inner := st.NewStore(db)
		Expect(inner.InitialMigration()).To(BeNil())
		s = newCountingStore(inner)
	})

	AfterAll(func() {
		s.Close()
	})

	BeforeEach(func() {
		cfg = config.NewDefault()
		cfg.Service.UploadBatchSize = 4
		cfg.Service.Kube.Namespace = "default"
		cfg.Service.Kube.TrainingImage = "registry.example.com/training:latest"

		blobs = newMemBlobStore()
		client = fake.NewSimpleClientset()
		s.project.deltas = nil
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM annotations;")
		gormdb.Exec("DELETE FROM annotation_classes;")
		gormdb.Exec("DELETE FROM projects;")
	})

	newIngest := func() *service.IngestService {
		return service.NewIngestService(s, blobs, pod.NewOrchestrator(client, cfg), cfg)
	}

	createProject := func(classCount int) uuid.UUID {
		project := model.Project{
			ID:     uuid.New(),
			Name:   "fields",
			Status: model.ProjectStatusDraft,
		}
		for i := 0; i < classCount; i++ {
			project.AnnotationClasses = append(project.AnnotationClasses, model.AnnotationClass{Name: "class", Color: "#0000ff"})
		}
		created, err := s.Project().Create(context.TODO(), project)
		Expect(err).To(BeNil())
		return created.ID
	}

	stage := func(projectID uuid.UUID, fileName string, data []byte) {
		blobs.put(cfg.Service.S3.OriginalBucket, projectID.String()+"/"+fileName, data)
	}

	Context("split and upload", func() {
		It("tiles the staged image and moves the project to in progress", func() {
			projectID := createProject(2)
			stage(projectID, "img.png", encodePNG(600, 400))

			err := newIngest().SplitAndUpload(context.TODO(), projectID, []string{"img.png"})
			Expect(err).To(BeNil())

			// 600x400 at tile size 256 is a 2x3 grid.
			Expect(blobs.objectCount(cfg.Service.S3.PublicBucket)).To(Equal(6))
			Expect(blobs.has(cfg.Service.S3.PublicBucket, projectID.String()+"/img_0_0.png")).To(BeTrue())
			Expect(blobs.has(cfg.Service.S3.PublicBucket, projectID.String()+"/img_1_2.png")).To(BeTrue())

			project, err := s.Project().Get(context.TODO(), projectID)
			Expect(err).To(BeNil())
			Expect(project.TotalImages).To(Equal(6))
			Expect(project.Status).To(Equal(model.ProjectStatusInProgress))

			count, err := s.Annotation().Count(context.TODO(), projectID)
			Expect(err).To(BeNil())
			Expect(count).To(Equal(int64(6)))

			annotation, err := s.Annotation().Get(context.TODO(), projectID, 0)
			Expect(err).To(BeNil())
			masks, err := annotation.DecodeMasks()
			Expect(err).To(BeNil())
			Expect(masks).To(HaveLen(2))
		})

		It("flushes full batches first and the remainder last", func() {
			cfg.Service.TileSize = 32
			cfg.Service.UploadBatchSize = 30

			projectID := createProject(1)
			// 406x150 at tile size 32 is a 5x13 grid: 65 tiles.
			stage(projectID, "strip.png", encodePNG(406, 150))

			err := newIngest().SplitAndUpload(context.TODO(), projectID, []string{"strip.png"})
			Expect(err).To(BeNil())

			Expect(s.project.increments()).To(Equal([]int{30, 30, 5}))
			Expect(blobs.objectCount(cfg.Service.S3.PublicBucket)).To(Equal(65))

			project, err := s.Project().Get(context.TODO(), projectID)
			Expect(err).To(BeNil())
			Expect(project.TotalImages).To(Equal(65))
		})

		It("continues tile indices across files", func() {
			projectID := createProject(1)
			stage(projectID, "a.png", encodePNG(600, 400))
			stage(projectID, "b.png", encodePNG(600, 400))

			err := newIngest().SplitAndUpload(context.TODO(), projectID, []string{"a.png", "b.png"})
			Expect(err).To(BeNil())

			project, err := s.Project().Get(context.TODO(), projectID)
			Expect(err).To(BeNil())
			Expect(project.TotalImages).To(Equal(12))

			annotations, err := s.Annotation().List(context.TODO(), projectID)
			Expect(err).To(BeNil())
			Expect(annotations).To(HaveLen(12))
			for i, a := range annotations {
				Expect(a.ImageIndex).To(Equal(i))
			}
		})

		It("stands up the training pod on the first upload only", func() {
			projectID := createProject(1)
			stage(projectID, "a.png", encodePNG(600, 400))
			stage(projectID, "b.png", encodePNG(600, 400))

			err := newIngest().SplitAndUpload(context.TODO(), projectID, []string{"a.png", "b.png"})
			Expect(err).To(BeNil())

			created, err := client.CoreV1().Pods("default").Get(context.TODO(), pod.Name(projectID.String()), metav1.GetOptions{})
			Expect(err).To(BeNil())
			Expect(created.Name).To(Equal("sat-project-" + projectID.String()))

			creates := 0
			for _, action := range client.Actions() {
				if action.GetVerb() == "create" {
					creates++
				}
			}
			Expect(creates).To(Equal(1))
		})

		It("rolls the project back to draft when the original is missing", func() {
			projectID := createProject(1)
			status := model.ProjectStatusInProgress
			_, err := s.Project().Update(context.TODO(), projectID, &status, nil)
			Expect(err).To(BeNil())

			err = newIngest().SplitAndUpload(context.TODO(), projectID, []string{"missing.png"})
			Expect(err).ToNot(BeNil())

			project, err := s.Project().Get(context.TODO(), projectID)
			Expect(err).To(BeNil())
			Expect(project.Status).To(Equal(model.ProjectStatusDraft))
		})

		It("rejects an image over the byte limit before producing tiles", func() {
			cfg.Service.ImageByteLimit = 64

			projectID := createProject(1)
			stage(projectID, "big.png", encodePNG(600, 400))

			err := newIngest().SplitAndUpload(context.TODO(), projectID, []string{"big.png"})
			var rejected *service.ErrImageRejected
			Expect(errors.As(err, &rejected)).To(BeTrue())

			Expect(blobs.objectCount(cfg.Service.S3.PublicBucket)).To(Equal(0))
			project, err := s.Project().Get(context.TODO(), projectID)
			Expect(err).To(BeNil())
			Expect(project.Status).To(Equal(model.ProjectStatusDraft))
		})

		It("rejects bytes that are not an image", func() {
			projectID := createProject(1)
			stage(projectID, "junk.bin", []byte("not an image at all"))

			err := newIngest().SplitAndUpload(context.TODO(), projectID, []string{"junk.bin"})
			var invalid *service.ErrInvalidImage
			Expect(errors.As(err, &invalid)).To(BeTrue())
		})

		It("fails when the project does not exist", func() {
			projectID := uuid.New()
			stage(projectID, "img.png", encodePNG(600, 400))

			err := newIngest().SplitAndUpload(context.TODO(), projectID, []string{"img.png"})
			var notFound *service.ErrProjectNotFound
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})

		It("keeps batches that already flushed when a later upload fails", func() {
			blobs.failAfter = 4

			projectID := createProject(1)
			stage(projectID, "img.png", encodePNG(600, 400))

			err := newIngest().SplitAndUpload(context.TODO(), projectID, []string{"img.png"})
			Expect(err).ToNot(BeNil())

			// The first batch of four stays; the rollback only touches status.
			Expect(blobs.objectCount(cfg.Service.S3.PublicBucket)).To(Equal(4))
			project, err := s.Project().Get(context.TODO(), projectID)
			Expect(err).To(BeNil())
			Expect(project.Status).To(Equal(model.ProjectStatusDraft))
			Expect(project.TotalImages).To(BeNumerically(">=", 4))
		})
	})
})
