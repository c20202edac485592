package registry

import "github.com/vexhub/vexdb/pkg/models"

// DefaultDenseModel is the dense model bound to the default vector field when
// the caller never calls SetDense.
const DefaultDenseModel = "BAAI/bge-small-en"

// builtinCatalog is the static geometry catalog of supported embedding
// models. Inference itself is an external capability; the catalog only pins
// each identifier to its vector geometry so that embed and query calls can be
// validated without touching model weights.
func builtinCatalog() map[string]models.ModelDescriptor {
	dense := func(name string, dim int) models.ModelDescriptor {
		return models.ModelDescriptor{
			Name:     name,
			Kind:     models.KindDense,
			Dim:      dim,
			Distance: models.DistanceCosine,
			Datatype: models.DatatypeFloat32,
		}
	}
	sparse := func(name string, mod models.Modifier) models.ModelDescriptor {
		return models.ModelDescriptor{
			Name:     name,
			Kind:     models.KindSparse,
			Datatype: models.DatatypeFloat32,
			Modifier: mod,
		}
	}
	multi := func(name string, dim int) models.ModelDescriptor {
		return models.ModelDescriptor{
			Name:     name,
			Kind:     models.KindMultivector,
			Dim:      dim,
			Distance: models.DistanceCosine,
			Datatype: models.DatatypeFloat32,
		}
	}

	catalog := make(map[string]models.ModelDescriptor)
	for _, d := range []models.ModelDescriptor{
		dense("BAAI/bge-small-en", 384),
		dense("BAAI/bge-small-en-v1.5", 384),
		dense("BAAI/bge-base-en", 768),
		dense("BAAI/bge-base-en-v1.5", 768),
		dense("BAAI/bge-large-en-v1.5", 1024),
		dense("sentence-transformers/all-MiniLM-L6-v2", 384),
		dense("jinaai/jina-embeddings-v2-small-en", 512),
		dense("jinaai/jina-embeddings-v2-base-en", 768),
		dense("nomic-ai/nomic-embed-text-v1.5", 768),
		dense("mixedbread-ai/mxbai-embed-large-v1", 1024),
		dense("thenlper/gte-large", 1024),
		dense("intfloat/multilingual-e5-large", 1024),
		dense("Qdrant/clip-ViT-B-32-text", 512),
		dense("Qdrant/resnet50-onnx", 2048),

		multi("colbert-ir/colbertv2.0", 128),
		multi("answerdotai/answerai-colbert-small-v1", 96),

		sparse("prithivida/Splade_PP_en_v1", models.ModifierNone),
		sparse("Qdrant/bm25", models.ModifierIDF),
		sparse("Qdrant/bm42-all-minilm-l6-v2-attentions", models.ModifierIDF),
	} {
		catalog[d.Name] = d
	}
	return catalog
}
