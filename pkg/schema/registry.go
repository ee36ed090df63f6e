package schema

import "regexp"

// Wire format patterns shared across snapshot kinds.
var (
	identityPattern  = regexp.MustCompile(`^[a-z0-9.-]+\.eth$`)
	contentIDPattern = regexp.MustCompile(`^(bafy|Qm)[a-zA-Z0-9]+$`)
	walletPattern    = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	sigPattern       = regexp.MustCompile(`^0x[a-fA-F0-9]{130}$`)
	hashPattern      = regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`)
	versionPattern   = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	amountPattern    = regexp.MustCompile(`^\d+\.?\d*$`)
)

func f64(v float64) *float64 { return &v }

// Base members every snapshot carries. The sig member is optional here:
// the gate runs before signing, and publication paths separately require
// a present, verified signature.
func baseProperties(kind string) map[string]Constraint {
	return map[string]Constraint{
		"type":      {Const: kind, Type: TypeString},
		"version":   {Type: TypeString, Pattern: versionPattern},
		"timestamp": {Type: TypeInteger, Minimum: f64(0)},
		"nonce":     {Type: TypeString, MinLength: 16},
		"sig":       {Type: TypeString, Pattern: sigPattern},
	}
}

func withBase(kind string, props map[string]Constraint) map[string]Constraint {
	out := baseProperties(kind)
	for k, v := range props {
		out[k] = v
	}
	return out
}

var registry = map[Kind]*Schema{
	KindGenesis: {
		Required: []string{"type", "version", "provider", "wallet", "gpus", "timestamp", "nonce"},
		Closed:   true,
		Properties: withBase("genesis", map[string]Constraint{
			"provider": {Type: TypeString, Pattern: identityPattern},
			"wallet":   {Type: TypeString, Pattern: walletPattern},
			"gpus":     {Type: TypeArray, MinItems: 1},
			"models":   {Type: TypeArray},
		}),
	},

	KindJob: {
		Required: []string{"type", "version", "job_id", "model", "input_cid", "payment", "client", "timestamp", "nonce"},
		Closed:   true,
		Properties: withBase("job", map[string]Constraint{
			"job_id":    {Type: TypeString, MinLength: 10},
			"model":     {Type: TypeString, MinLength: 1},
			"input_cid": {Type: TypeString, Pattern: contentIDPattern},
			"params": {Type: TypeObject, Object: &Schema{
				Properties: map[string]Constraint{
					"confidence_threshold": {Type: TypeNumber, Minimum: f64(0), Maximum: f64(1)},
					"output_format":        {Type: TypeString},
				},
			}},
			"payment": {Type: TypeObject, Object: &Schema{
				Required: []string{"amount", "token"},
				Properties: map[string]Constraint{
					"amount": {Type: TypeString, Pattern: amountPattern},
					"token":  {Type: TypeString, MinLength: 1},
				},
			}},
			"client": {Type: TypeString, Pattern: identityPattern},
		}),
	},

	KindClaim: {
		Required: []string{"type", "version", "claim_id", "job_id", "job_cid", "provider", "mode", "timestamp", "nonce"},
		Closed:   true,
		Properties: withBase("claim", map[string]Constraint{
			"claim_id": {Type: TypeString, MinLength: 10},
			"job_id":   {Type: TypeString, MinLength: 1},
			"job_cid":  {Type: TypeString, Pattern: contentIDPattern},
			"provider": {Type: TypeString, Pattern: identityPattern},
			"mode":     {Type: TypeString, Enum: []string{"SOLO", "PPL"}},
		}),
	},

	KindProof: {
		Required: []string{"type", "version", "proof_id", "job_id", "job_cid", "status", "output_cid", "metrics", "provider", "timestamp", "proof_hash", "nonce"},
		Closed:   true,
		Properties: withBase("proof", map[string]Constraint{
			"proof_id":   {Type: TypeString, MinLength: 10},
			"job_id":     {Type: TypeString, MinLength: 1},
			"job_cid":    {Type: TypeString, Pattern: contentIDPattern},
			"status":     {Type: TypeString, Enum: []string{"completed", "failed"}},
			"output_cid": {Type: TypeString, Pattern: contentIDPattern},
			"report_cid": {Type: TypeString, Pattern: contentIDPattern},
			"metrics": {Type: TypeObject, Object: &Schema{
				Required: []string{"inference_seconds", "compute_seconds", "confidence"},
				Properties: map[string]Constraint{
					"inference_seconds": {Type: TypeNumber, Minimum: f64(0)},
					"compute_seconds":   {Type: TypeNumber, Minimum: f64(0)},
					"confidence":        {Type: TypeNumber, Minimum: f64(0), Maximum: f64(1)},
					"model_version":     {Type: TypeString},
				},
			}},
			"provider":   {Type: TypeString, Pattern: identityPattern},
			"proof_hash": {Type: TypeString, Pattern: hashPattern},
		}),
	},

	KindWithdrawal: {
		Required: []string{"type", "version", "withdrawal_id", "provider", "wallet", "amount", "timestamp", "nonce"},
		Closed:   true,
		Properties: withBase("withdrawal", map[string]Constraint{
			"withdrawal_id": {Type: TypeString, MinLength: 10},
			"provider":      {Type: TypeString, Pattern: identityPattern},
			"wallet":        {Type: TypeString, Pattern: walletPattern},
			"amount":        {Type: TypeString, Pattern: amountPattern},
		}),
	},

	KindEpoch: {
		Required: []string{"type", "version", "epoch_id", "name", "status", "started_at", "jobs_count", "total_volume", "controller", "timestamp", "nonce"},
		Closed:   true,
		Properties: withBase("epoch", map[string]Constraint{
			"epoch_id":     {Type: TypeString, MinLength: 5},
			"name":         {Type: TypeString, MinLength: 1},
			"status":       {Type: TypeString, Enum: []string{"active", "sealed"}},
			"started_at":   {Type: TypeInteger, Minimum: f64(0)},
			"ended_at":     {Type: TypeInteger, Minimum: f64(0)},
			"jobs_count":   {Type: TypeInteger, Minimum: f64(0)},
			"total_volume": {Type: TypeString, Pattern: amountPattern},
			"merkle_root":  {Type: TypeString, Pattern: hashPattern},
			"settlements":  {Type: TypeObject},
			"controller":   {Type: TypeString, Pattern: identityPattern},
		}),
	},
}
