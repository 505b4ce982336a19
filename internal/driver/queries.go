package driver

const (
	SaveThoughtNodeQuery = `
		MERGE (n:Thought {id: $id, run_id: $run_id})
		SET n.label = $label,
			n.type = $type,
			n.confidence = $confidence,
			n.mean_confidence = $mean_confidence,
			n.notes = $notes,
			n.source_description = $source_description,
			n.parent_dimension = $parent_dimension,
			n.impact_score = $impact_score,
			n.created_at = $created_at
		RETURN n.id AS id
	`

	SaveThoughtEdgeQuery = `
		MATCH (source:Thought {id: $source_id, run_id: $run_id})
		MATCH (target:Thought {id: $target_id, run_id: $run_id})
		MERGE (source)-[e:RELATES {id: $id}]->(target)
		SET e.type = $type,
			e.confidence = $confidence,
			e.created_at = $created_at
		RETURN e.id AS id
	`

	DeleteRunQuery = `
		MATCH (n:Thought {run_id: $run_id})
		DETACH DELETE n
	`
)
