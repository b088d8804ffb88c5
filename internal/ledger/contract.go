package ledger

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"certledger/internal/credential/models"
	"certledger/pkg/validation"
)

// RegistryABI is the surface of the diploma registry contract. Dates travel
// as YYYYMMDD integers so birth dates before 1970 stay representable.
const RegistryABI = `[
  {"type":"function","name":"storeDiploma","stateMutability":"nonpayable","inputs":[
    {"name":"fingerprint","type":"string"},
    {"name":"title","type":"string"},
    {"name":"category","type":"string"},
    {"name":"issuerName","type":"string"},
    {"name":"issueDate","type":"uint256"},
    {"name":"distinction","type":"string"},
    {"name":"serialNumber","type":"string"},
    {"name":"holderName","type":"string"},
    {"name":"holderBirth","type":"uint256"},
    {"name":"holderContact","type":"string"}
  ],"outputs":[]},
  {"type":"function","name":"getDiploma","stateMutability":"view","inputs":[
    {"name":"fingerprint","type":"string"}
  ],"outputs":[
    {"name":"title","type":"string"},
    {"name":"category","type":"string"},
    {"name":"issuerName","type":"string"},
    {"name":"issueDate","type":"uint256"},
    {"name":"distinction","type":"string"},
    {"name":"serialNumber","type":"string"},
    {"name":"holderName","type":"string"},
    {"name":"holderBirth","type":"uint256"},
    {"name":"holderContact","type":"string"},
    {"name":"issuer","type":"address"},
    {"name":"timestamp","type":"uint256"},
    {"name":"exists","type":"bool"}
  ]},
  {"type":"event","name":"DiplomaStored","anonymous":false,"inputs":[
    {"name":"fingerprint","type":"string","indexed":false},
    {"name":"issuer","type":"address","indexed":true},
    {"name":"timestamp","type":"uint256","indexed":false}
  ]}
]`

const (
	methodStore = "storeDiploma"
	methodGet   = "getDiploma"
)

// registry packs calls to and unpacks results from the registry contract.
type registry struct {
	abi abi.ABI
}

func newRegistry() (*registry, error) {
	parsed, err := abi.JSON(strings.NewReader(RegistryABI))
	if err != nil {
		return nil, fmt.Errorf("parse registry abi: %w", err)
	}
	return &registry{abi: parsed}, nil
}

func (r *registry) packStore(fp models.Fingerprint, f models.Fields) ([]byte, error) {
	issued, err := encodeDate(f.IssueDate)
	if err != nil {
		return nil, err
	}
	born, err := encodeDate(f.HolderBirthDate)
	if err != nil {
		return nil, err
	}
	return r.abi.Pack(methodStore,
		fp.String(),
		f.Title,
		f.Category,
		f.IssuerName,
		issued,
		f.Distinction,
		f.SerialNumber,
		f.HolderName,
		born,
		f.HolderContact,
	)
}

func (r *registry) packGet(fp models.Fingerprint) ([]byte, error) {
	return r.abi.Pack(methodGet, fp.String())
}

// unpackGet decodes getDiploma output. exists=false yields an absent result.
func (r *registry) unpackGet(data []byte) (AnchorRecordResult, error) {
	out, err := r.abi.Unpack(methodGet, data)
	if err != nil {
		return AnchorRecordResult{}, fmt.Errorf("unpack %s: %w", methodGet, err)
	}
	if len(out) != 12 {
		return AnchorRecordResult{}, fmt.Errorf("unpack %s: expected 12 values, got %d", methodGet, len(out))
	}
	exists, ok := out[11].(bool)
	if !ok {
		return AnchorRecordResult{}, fmt.Errorf("unpack %s: exists is %T", methodGet, out[11])
	}
	if !exists {
		return AbsentRecord(), nil
	}

	var (
		rec       AnchorRecord
		issueDate *big.Int
		birthDate *big.Int
		issuer    common.Address
		stamp     *big.Int
	)
	strs := []*string{&rec.Title, &rec.Category, &rec.IssuerName}
	for i, dst := range strs {
		if *dst, ok = out[i].(string); !ok {
			return AnchorRecordResult{}, fmt.Errorf("unpack %s: field %d is %T", methodGet, i, out[i])
		}
	}
	if issueDate, ok = out[3].(*big.Int); !ok {
		return AnchorRecordResult{}, fmt.Errorf("unpack %s: issueDate is %T", methodGet, out[3])
	}
	strs = []*string{&rec.Distinction, &rec.SerialNumber, &rec.HolderName}
	for i, dst := range strs {
		if *dst, ok = out[4+i].(string); !ok {
			return AnchorRecordResult{}, fmt.Errorf("unpack %s: field %d is %T", methodGet, 4+i, out[4+i])
		}
	}
	if birthDate, ok = out[7].(*big.Int); !ok {
		return AnchorRecordResult{}, fmt.Errorf("unpack %s: holderBirth is %T", methodGet, out[7])
	}
	if rec.HolderContact, ok = out[8].(string); !ok {
		return AnchorRecordResult{}, fmt.Errorf("unpack %s: holderContact is %T", methodGet, out[8])
	}
	if issuer, ok = out[9].(common.Address); !ok {
		return AnchorRecordResult{}, fmt.Errorf("unpack %s: issuer is %T", methodGet, out[9])
	}
	if stamp, ok = out[10].(*big.Int); !ok {
		return AnchorRecordResult{}, fmt.Errorf("unpack %s: timestamp is %T", methodGet, out[10])
	}

	rec.IssueDate = decodeDate(issueDate)
	rec.HolderBirthDate = decodeDate(birthDate)
	rec.IssuerAddress = issuer.Hex()
	rec.AnchoredAt = time.Unix(stamp.Int64(), 0).UTC()
	return PresentRecord(rec), nil
}

// encodeDate turns "2024-06-30" into 20240630.
func encodeDate(value string) (*big.Int, error) {
	t, err := models.ParseDate(value)
	if err != nil {
		return nil, err
	}
	return big.NewInt(int64(t.Year()*10000 + int(t.Month())*100 + t.Day())), nil
}

// decodeDate turns 20240630 into "2024-06-30". A stored value that is not a
// calendar date comes back as its decimal text so the record still decodes
// and fails the fingerprint comparison.
func decodeDate(v *big.Int) string {
	if v == nil {
		return ""
	}
	if !v.IsInt64() {
		return v.String()
	}
	n := v.Int64()
	year, month, day := int(n/10000), time.Month((n/100)%100), int(n%100)
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if n < 0 || t.Year() != year || t.Month() != month || t.Day() != day {
		return v.String()
	}
	return t.Format(validation.DateLayout)
}
