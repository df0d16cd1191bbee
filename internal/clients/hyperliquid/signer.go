package hyperliquid

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// signingChainID is the fixed chain id of the venue's signing domain; it is
// not the chain the venue settles on.
var signingChainID = big.NewInt(1337)

// Signer signs exchange actions with the operator's key. The venue
// authenticates a request by recovering the signer of a "phantom agent"
// typed-data hash derived from the msgpack-encoded action and the nonce.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chain   string // agent source: "a" on mainnet, "b" on testnet
}

// NewSigner parses the private key and derives the signing address.
func NewSigner(privateKeyHex string, mainnet bool) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	chain := "b" // testnet agent source
	if mainnet {
		chain = "a"
	}
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chain:   chain,
	}, nil
}

// Address returns the address the venue will recover from signatures.
func (s *Signer) Address() common.Address {
	return s.address
}

// signature is the r/s/v triple the exchange endpoint expects.
type signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V uint8  `json:"v"`
}

// Sign produces the request signature for a msgpack-encoded action and
// nonce: the action bytes and nonce collapse into a phantom-agent struct
// whose EIP-712 hash is what actually gets signed.
func (s *Signer) Sign(actionBytes []byte, nonce uint64) (signature, error) {
	digest := s.typedDataHash(actionHash(actionBytes, nonce))

	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return signature{}, fmt.Errorf("failed to sign action: %w", err)
	}

	return signature{
		R: hexutil.Encode(sig[:32]),
		S: hexutil.Encode(sig[32:64]),
		V: sig[64] + 27,
	}, nil
}

// actionHash is keccak over the msgpack action, the big-endian nonce and a
// zero byte (no vault address).
func actionHash(actionBytes []byte, nonce uint64) common.Hash {
	data := make([]byte, 0, len(actionBytes)+9)
	data = append(data, actionBytes...)

	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], nonce)
	data = append(data, nonceBytes[:]...)
	data = append(data, 0x00)

	return crypto.Keccak256Hash(data)
}

// typedDataHash builds the EIP-712 digest for the phantom agent struct
// {source, connectionId} under the venue's fixed signing domain.
func (s *Signer) typedDataHash(connectionID common.Hash) []byte {
	domainSeparator := crypto.Keccak256Hash(
		crypto.Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)")),
		crypto.Keccak256([]byte("Exchange")),
		crypto.Keccak256([]byte("1")),
		common.BigToHash(signingChainID).Bytes(),
		common.Hash{}.Bytes(),
	)

	structHash := crypto.Keccak256Hash(
		crypto.Keccak256([]byte("Agent(string source,bytes32 connectionId)")),
		crypto.Keccak256([]byte(s.chain)),
		connectionID.Bytes(),
	)

	return crypto.Keccak256(
		[]byte{0x19, 0x01},
		domainSeparator.Bytes(),
		structHash.Bytes(),
	)
}
