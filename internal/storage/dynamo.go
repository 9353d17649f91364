package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/ignite/opportunity-engine/internal/domain"
	"github.com/ignite/opportunity-engine/internal/opportunity"
	"github.com/ignite/opportunity-engine/internal/scoring"
)

// LoadAWSConfig loads the shared AWS configuration, optionally from a
// named profile.
func LoadAWSConfig(ctx context.Context, region, profile string) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}

// opportunityItem is the single-table DynamoDB layout. Lifecycle fields
// live as top-level attributes so conditional writes can reference them;
// Data carries the full presentation payload as JSON. On read the
// attributes win over whatever the payload says.
type opportunityItem struct {
	PK           string  `dynamodbav:"PK"` // ORG#<organization_id>
	SK           string  `dynamodbav:"SK"` // OPP#<idempotency_key>
	ID           string  `dynamodbav:"ID"`
	Status       string  `dynamodbav:"OppStatus"`
	StatusReason string  `dynamodbav:"StatusReason,omitempty"`
	Category     string  `dynamodbav:"Category"`
	Priority     string  `dynamodbav:"Priority"`
	ImpactScore  float64 `dynamodbav:"ImpactScore"`
	DetectedAt   string  `dynamodbav:"DetectedAt"` // RFC3339
	UpdatedAt    string  `dynamodbav:"UpdatedAt"`  // RFC3339
	Data         string  `dynamodbav:"Data"`
}

// DynamoOpportunityStore implements opportunity.Store on DynamoDB. The
// at-most-one live "new" record per key guarantee comes from conditional
// writes on the item key, never from external locking.
type DynamoOpportunityStore struct {
	client    *dynamodb.Client
	tableName string
	idIndex   string
	cooldown  time.Duration
}

// NewDynamoOpportunityStore wraps a DynamoDB client. idIndex is the GSI
// keyed on ID used for lookups by opportunity id; zero cooldown means
// opportunity.DefaultCooldown.
func NewDynamoOpportunityStore(cfg aws.Config, tableName, idIndex string, cooldown time.Duration) *DynamoOpportunityStore {
	if cooldown <= 0 {
		cooldown = opportunity.DefaultCooldown
	}
	if idIndex == "" {
		idIndex = "id-index"
	}
	return &DynamoOpportunityStore{
		client:    dynamodb.NewFromConfig(cfg),
		tableName: tableName,
		idIndex:   idIndex,
		cooldown:  cooldown,
	}
}

func orgPK(orgID string) string { return "ORG#" + orgID }
func oppSK(key string) string   { return "OPP#" + key }

func scopePrefix(o domain.Opportunity) string {
	return "OPP#" + o.CooldownScope() + "|"
}

// Upsert implements the idempotent merge discipline.
func (s *DynamoOpportunityStore) Upsert(ctx context.Context, opp domain.Opportunity) (opportunity.UpsertOutcome, error) {
	if opp.OrganizationID == "" || opp.EntityID == "" || opp.DetectorID == "" {
		return "", fmt.Errorf("upsert requires organization, entity, and detector ids")
	}
	if opp.ID == "" {
		opp.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	cutoff := now.Add(-s.cooldown).Format(time.RFC3339)

	inCooldown, err := s.scopeDismissedSince(ctx, opp, cutoff)
	if err != nil {
		return "", err
	}
	if inCooldown {
		return opportunity.OutcomeSuppressed, nil
	}

	if opp.DetectedAt.IsZero() {
		opp.DetectedAt = now
	}
	opp.Status = domain.StatusNew
	opp.StatusReason = ""
	opp.UpdatedAt = now

	data, err := json.Marshal(opp)
	if err != nil {
		return "", fmt.Errorf("marshaling opportunity: %w", err)
	}
	item := opportunityItem{
		PK:          orgPK(opp.OrganizationID),
		SK:          oppSK(opp.IdempotencyKey()),
		ID:          opp.ID,
		Status:      string(domain.StatusNew),
		Category:    string(opp.Category),
		Priority:    string(opp.Priority),
		ImpactScore: opp.PotentialImpactScore,
		DetectedAt:  opp.DetectedAt.Format(time.RFC3339),
		UpdatedAt:   now.Format(time.RFC3339),
		Data:        string(data),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return "", fmt.Errorf("marshaling item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(SK)"),
	})
	if err == nil {
		return opportunity.OutcomeInserted, nil
	}
	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return "", fmt.Errorf("putting opportunity to DynamoDB: %w", err)
	}

	// The key exists: refresh in place if the record is still live, or
	// resurface a dismissed record whose cooldown has lapsed.
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: item.PK},
			"SK": &types.AttributeValueMemberS{Value: item.SK},
		},
		UpdateExpression: aws.String(
			"SET #data = :data, OppStatus = :new, StatusReason = :empty, Priority = :priority, ImpactScore = :impact, UpdatedAt = :now"),
		ConditionExpression: aws.String(
			"OppStatus = :new OR (OppStatus = :dismissed AND UpdatedAt <= :cutoff)"),
		ExpressionAttributeNames: map[string]string{"#data": "Data"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":data":      &types.AttributeValueMemberS{Value: item.Data},
			":new":       &types.AttributeValueMemberS{Value: string(domain.StatusNew)},
			":dismissed": &types.AttributeValueMemberS{Value: string(domain.StatusDismissed)},
			":empty":     &types.AttributeValueMemberS{Value: ""},
			":priority":  &types.AttributeValueMemberS{Value: item.Priority},
			":impact":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%f", item.ImpactScore)},
			":now":       &types.AttributeValueMemberS{Value: item.UpdatedAt},
			":cutoff":    &types.AttributeValueMemberS{Value: cutoff},
		},
	})
	if err == nil {
		return opportunity.OutcomeRefreshed, nil
	}
	if errors.As(err, &ccf) {
		// Terminal record for this period.
		return opportunity.OutcomeSuppressed, nil
	}
	return "", fmt.Errorf("updating opportunity in DynamoDB: %w", err)
}

// scopeDismissedSince reports whether any record in the opportunity's
// cooldown scope was dismissed after the cutoff. RFC3339 strings compare
// lexicographically in time order.
func (s *DynamoOpportunityStore) scopeDismissedSince(ctx context.Context, opp domain.Opportunity, cutoff string) (bool, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :scope)"),
		FilterExpression:       aws.String("OppStatus = :dismissed AND UpdatedAt > :cutoff"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":        &types.AttributeValueMemberS{Value: orgPK(opp.OrganizationID)},
			":scope":     &types.AttributeValueMemberS{Value: scopePrefix(opp)},
			":dismissed": &types.AttributeValueMemberS{Value: string(domain.StatusDismissed)},
			":cutoff":    &types.AttributeValueMemberS{Value: cutoff},
		},
		Select: types.SelectCount,
	})
	if err != nil {
		return false, fmt.Errorf("querying dismissal cooldown: %w", err)
	}
	return result.Count > 0, nil
}

// lookupByID resolves an opportunity id to its table item via the GSI.
func (s *DynamoOpportunityStore) lookupByID(ctx context.Context, id string) (opportunityItem, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(s.idIndex),
		KeyConditionExpression: aws.String("ID = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: id},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return opportunityItem{}, fmt.Errorf("querying opportunity by id: %w", err)
	}
	if len(result.Items) == 0 {
		return opportunityItem{}, opportunity.ErrNotFound
	}
	var item opportunityItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return opportunityItem{}, fmt.Errorf("unmarshaling item: %w", err)
	}
	return item, nil
}

// Get fetches one opportunity by id.
func (s *DynamoOpportunityStore) Get(ctx context.Context, id string) (domain.Opportunity, error) {
	item, err := s.lookupByID(ctx, id)
	if err != nil {
		return domain.Opportunity{}, err
	}
	return item.opportunity()
}

// UpdateStatus applies a lifecycle transition with a conditional write.
func (s *DynamoOpportunityStore) UpdateStatus(ctx context.Context, id string, status domain.OpportunityStatus, reason string) (domain.Opportunity, error) {
	if !domain.ValidStatus(status) || status == domain.StatusNew {
		return domain.Opportunity{}, opportunity.ErrInvalidTransition
	}
	if status == domain.StatusDismissed && reason == "" {
		return domain.Opportunity{}, opportunity.ErrReasonRequired
	}

	item, err := s.lookupByID(ctx, id)
	if err != nil {
		return domain.Opportunity{}, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: item.PK},
			"SK": &types.AttributeValueMemberS{Value: item.SK},
		},
		UpdateExpression:    aws.String("SET OppStatus = :status, StatusReason = :reason, UpdatedAt = :now"),
		ConditionExpression: aws.String("OppStatus = :new"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
			":reason": &types.AttributeValueMemberS{Value: reason},
			":new":    &types.AttributeValueMemberS{Value: string(domain.StatusNew)},
			":now":    &types.AttributeValueMemberS{Value: now},
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return domain.Opportunity{}, opportunity.ErrInvalidTransition
	}
	if err != nil {
		return domain.Opportunity{}, fmt.Errorf("updating opportunity status: %w", err)
	}

	item.Status = string(status)
	item.StatusReason = reason
	item.UpdatedAt = now
	return item.opportunity()
}

// List returns filtered opportunities in presentation order. DynamoDB
// listings are organization-scoped; an empty organization filter is an
// error rather than a table scan.
func (s *DynamoOpportunityStore) List(ctx context.Context, f opportunity.Filter) ([]domain.Opportunity, error) {
	if f.OrganizationID == "" {
		return nil, fmt.Errorf("list requires an organization filter")
	}

	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :opp)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":  &types.AttributeValueMemberS{Value: orgPK(f.OrganizationID)},
			":opp": &types.AttributeValueMemberS{Value: "OPP#"},
		},
	}

	var out []domain.Opportunity
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("querying opportunities: %w", err)
		}
		for _, raw := range result.Items {
			var item opportunityItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				continue
			}
			opp, err := item.opportunity()
			if err != nil {
				continue
			}
			if f.Matches(opp) {
				out = append(out, opp)
			}
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	scoring.Rank(out)

	start, end := f.PageBounds()
	if start >= len(out) {
		return nil, nil
	}
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], nil
}

// opportunity decodes the payload with the item attributes authoritative
// for identity and lifecycle.
func (i opportunityItem) opportunity() (domain.Opportunity, error) {
	var opp domain.Opportunity
	if err := json.Unmarshal([]byte(i.Data), &opp); err != nil {
		return domain.Opportunity{}, fmt.Errorf("unmarshaling opportunity data: %w", err)
	}
	opp.ID = i.ID
	opp.Status = domain.OpportunityStatus(i.Status)
	opp.StatusReason = i.StatusReason
	if t, err := time.Parse(time.RFC3339, i.DetectedAt); err == nil {
		opp.DetectedAt = t
	}
	if t, err := time.Parse(time.RFC3339, i.UpdatedAt); err == nil {
		opp.UpdatedAt = t
	}
	return opp, nil
}
