package proofs

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	xerrors "NoccStacks-Crew/internal/errors"
)

// CodeProofInvalid 表示产物与证明不匹配。
const CodeProofInvalid xerrors.Code = "PROOF_INVALID"

func init() {
	xerrors.Register(CodeProofInvalid, xerrors.Attributes{
		Message:  "artifact proof mismatch",
		Severity: xerrors.SeverityWarning,
	})
}

// Proof 是单个产物的摘要与可选签名。
type Proof struct {
	Subject   string `json:"subject"`
	Digest    string `json:"digest"`
	Signature string `json:"signature,omitempty"`
	Signer    string `json:"signer,omitempty"`
}

// Attester 为产物生成证明。未配置私钥时只计算摘要。
type Attester struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewAttester 解析十六进制私钥（可带 0x 前缀）。keyHex 为空时返回仅摘要的 Attester。
func NewAttester(keyHex string) (*Attester, error) {
	keyHex = strings.TrimPrefix(strings.TrimSpace(keyHex), "0x")
	if keyHex == "" {
		return &Attester{}, nil
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析签名私钥失败")
	}
	return &Attester{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Signing 报告是否会附带签名。
func (a *Attester) Signing() bool {
	return a != nil && a.key != nil
}

// Address 返回签名地址，未配置私钥时为空。
func (a *Attester) Address() string {
	if !a.Signing() {
		return ""
	}
	return a.address.Hex()
}

// Attest 计算 content 的摘要，并在配置了私钥时签名。
func (a *Attester) Attest(subject string, content []byte) (Proof, error) {
	hash := crypto.Keccak256(content)
	proof := Proof{Subject: subject, Digest: hexutil.Encode(hash)}
	if !a.Signing() {
		return proof, nil
	}
	sig, err := crypto.Sign(hash, a.key)
	if err != nil {
		return Proof{}, xerrors.Wrap(xerrors.CodeUnknown, err, fmt.Sprintf("签名产物 %s 失败", subject))
	}
	proof.Signature = hexutil.Encode(sig)
	proof.Signer = a.address.Hex()
	return proof, nil
}

// Digest 返回 content 的 0x 前缀 Keccak-256 摘要。
func Digest(content []byte) string {
	return hexutil.Encode(crypto.Keccak256(content))
}

// Verify 重新计算摘要，并在存在签名时恢复签名者地址进行比对。
func Verify(proof Proof, content []byte) error {
	hash := crypto.Keccak256(content)
	if !strings.EqualFold(proof.Digest, hexutil.Encode(hash)) {
		return xerrors.New(CodeProofInvalid, "摘要不匹配", xerrors.WithMetadata("subject", proof.Subject))
	}
	if proof.Signature == "" {
		return nil
	}
	sig, err := hexutil.Decode(proof.Signature)
	if err != nil {
		return xerrors.Wrap(CodeProofInvalid, err, "签名格式错误")
	}
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return xerrors.Wrap(CodeProofInvalid, err, "无法恢复签名公钥")
	}
	recovered := crypto.PubkeyToAddress(*pub)
	if !common.IsHexAddress(proof.Signer) || recovered != common.HexToAddress(proof.Signer) {
		return xerrors.New(CodeProofInvalid, "签名者不匹配",
			xerrors.WithMetadata("subject", proof.Subject),
			xerrors.WithMetadata("recovered", recovered.Hex()))
	}
	return nil
}
