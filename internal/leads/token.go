package leads

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const pageTokenVersion = 1

// pageToken is the decoded form of the opaque cursor handed to clients. It
// carries only key attributes, so the store can change how it pages without
// invalidating tokens within a version.
type pageToken struct {
	Version   int    `json:"v"`
	LeadID    string `json:"leadId"`
	Email     string `json:"email,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// encodePageToken converts a store continuation key into an opaque token.
// An empty key means the page sequence is exhausted and yields "".
func encodePageToken(key map[string]types.AttributeValue) (string, error) {
	if len(key) == 0 {
		return "", nil
	}
	tok := pageToken{
		Version:   pageTokenVersion,
		LeadID:    stringMember(key, "leadId"),
		Email:     stringMember(key, "email"),
		CreatedAt: stringMember(key, "createdAt"),
	}
	if tok.LeadID == "" {
		return "", fmt.Errorf("continuation key missing leadId")
	}
	raw, err := json.Marshal(tok)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// decodePageToken rebuilds the continuation key for the query identified by
// email ("" for an unfiltered scan). Tokens minted for a different query
// shape are rejected so a cursor can never resume the wrong sequence.
func decodePageToken(token, email string) (map[string]types.AttributeValue, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidPageToken
	}
	var tok pageToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, ErrInvalidPageToken
	}
	if tok.Version != pageTokenVersion || tok.LeadID == "" {
		return nil, ErrInvalidPageToken
	}
	if tok.Email != email {
		return nil, ErrInvalidPageToken
	}

	key := map[string]types.AttributeValue{
		"leadId": &types.AttributeValueMemberS{Value: tok.LeadID},
	}
	if email != "" {
		if tok.CreatedAt == "" {
			return nil, ErrInvalidPageToken
		}
		key["email"] = &types.AttributeValueMemberS{Value: tok.Email}
		key["createdAt"] = &types.AttributeValueMemberS{Value: tok.CreatedAt}
	}
	return key, nil
}

func stringMember(key map[string]types.AttributeValue, name string) string {
	if av, ok := key[name].(*types.AttributeValueMemberS); ok {
		return av.Value
	}
	return ""
}
